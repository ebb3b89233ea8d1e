// Package process provides subprocess lifecycle management.
//
// Handle owns a single long-running child process:
//   - The child runs in its own process group
//   - Kill force-terminates the whole group with SIGKILL and is idempotent
//   - Liveness is observed through Done, closed by the handle's own wait
//   - stdout/stderr lines go to an OutputHandler and to a per-module logger
//
// Output runs a short-lived command and returns its standard output. It is
// used for side-channel control commands that return free text.
//
// Example:
//
//	h, err := process.Start([]string{"python3", "stream.py", "--id", id}, process.Options{
//	    ID:     id,
//	    Logger: logger,
//	    Output: process.OutputHandlerFunc(func(source, line string) {
//	        watchdog.Touch()
//	    }),
//	})
//	if err != nil {
//	    return err
//	}
//	defer h.Kill()
//	<-h.Done()
package process
