package launch

import "golang.org/x/sys/unix"

// mkfifo creates a named FIFO at path, the /dev/fd-unavailable fallback
// for process substitution (spec.md §4.3 step 4).
func mkfifo(path string) error {
	return unix.Mkfifo(path, 0o600)
}
