package preflight

// checkFileDescriptors has no rlimit to inspect on Windows.
func checkFileDescriptors(required int) Check {
	return Check{
		Name:    "file_descriptors",
		Passed:  true,
		Warning: true,
		Message: "not applicable on windows",
	}
}
