// Package process provides subprocess lifecycle management for the ffmpeg
// decoder and encoder.
//
// Process wraps os/exec for a single subprocess:
//   - Raw stdout and stdin pipes owned by the caller
//   - Graceful shutdown with SIGINT and configurable timeout
//   - Force kill with SIGKILL if graceful shutdown times out
//   - Stderr relayed line by line to a logger with pluggable log parsing
//
// Example:
//
//	p, err := process.Start(process.Options{
//	    Name:      "decoder",
//	    Args:      ffmpeg.DecodeArgs(params),
//	    Env:       ffmpeg.Env(),
//	    Stdout:    true,
//	    Logger:    logging.GetLogger("decoder"),
//	    LogParser: ffmpeg.ParseLogLine,
//	})
//	if err != nil {
//	    return err
//	}
//	defer p.Stop()
//	io.ReadFull(p.Stdout(), buf)
package process
