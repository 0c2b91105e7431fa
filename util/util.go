package util

// Unpacks a slice into the given variables, the way the repl splits a
// command line into target and arguments.
// Fewer elements than variables leaves the remaining variables untouched;
// extra elements are dropped
func Unpack[T any](toUnpack []T, unpackInto ...*T) {
	n := len(toUnpack)
	if len(unpackInto) < n {
		n = len(unpackInto)
	}
	for i := 0; i < n; i++ {
		*unpackInto[i] = toUnpack[i]
	}
}
