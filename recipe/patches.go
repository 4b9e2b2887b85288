package recipe

// Patches returns the fixes applied to the 7.0.0 source tree, in order.
func Patches() []SourcePatch {
	return []SourcePatch{
		{
			// https://github.com/jtv/libpqxx/issues/265
			Path:        "src/CMakeLists.txt",
			Description: "skip cmake -E create_symlink on Windows hosts",
			Match:       "    if(NOT name STREQUAL output_name)",
			Replace:     "    if(NOT name STREQUAL output_name AND NOT CMAKE_HOST_WIN32)",
		},
		{
			Path:        "src/CMakeLists.txt",
			Description: "use the unversioned output name on Windows",
			Match: "set_target_properties(\n" +
				"\tpqxx PROPERTIES\n" +
				"\tOUTPUT_NAME pqxx-${PROJECT_VERSION_MAJOR}.${PROJECT_VERSION_MINOR}\n" +
				")",
			Replace: "set_target_properties(\n" +
				"    pqxx PROPERTIES\n" +
				"    OUTPUT_NAME $<IF:$<PLATFORM_ID:Windows>,pqxx,pqxx-${PROJECT_VERSION_MAJOR}.${PROJECT_VERSION_MINOR}>\n" +
				")",
		},
		{
			// Visual Studio 2017 reports C2397 on the braced string construction.
			Path:        "src/connection.cxx",
			Description: "avoid narrowing conversion in connection::cancel_query",
			Match:       cancelQuery("buf_size"),
			Replace:     cancelQuery("errbuf.size()"),
		},
	}
}

func cancelQuery(size string) string {
	return `void pqxx::connection::cancel_query()
{
  using pointer = std::unique_ptr<PGcancel, std::function<void(PGcancel *)>>;
  constexpr int buf_size{500};
  std::array<char, buf_size> errbuf;
  pointer cancel{PQgetCancel(m_conn), PQfreeCancel};
  if (cancel == nullptr)
    throw std::bad_alloc{};

  auto const c{PQcancel(cancel.get(), errbuf.data(), buf_size)};
  if (c == 0)
    throw pqxx::sql_error{std::string{errbuf.data(), ` + size + `}};
}`
}
