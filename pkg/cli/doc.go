// Package cli holds the terminal presentation layer shared by the
// parley commands: result output in JSON/YAML, request-file loading,
// lipgloss styles for transcripts and session frames, and the verbose
// logging switch.
//
// Example usage:
//
//	var req chatRequest
//	if err := cli.LoadRequest(path, &req); err != nil {
//	    return err
//	}
//	// ... run the request ...
//	cli.Output(result, cli.OutputOptions{Format: cli.FormatJSON})
package cli
