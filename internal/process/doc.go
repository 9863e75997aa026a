// Package process runs the ffmpeg helpers tracknode pipes frames through.
//
// A Pipe wraps os/exec for one subprocess whose stdin and stdout carry
// binary media:
//   - stderr is streamed line by line into a module logger, with the level
//     recovered from ffmpeg's "[level]" prefixes
//   - Stop closes stdin, sends SIGINT and waits a graceful timeout
//   - if the process is still alive it is killed and Stop reports 137
//
// Example:
//
//	p, err := process.Start("encoder", []string{"ffmpeg", "-i", "pipe:0", "-f", "h264", "pipe:1"},
//	    process.WithStdin(), process.WithStdout())
//	if err != nil {
//	    return err
//	}
//	defer p.Stop()
package process
