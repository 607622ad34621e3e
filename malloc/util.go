package malloc

import "fmt"

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}

func ceil(divident, divisor int64) int64 {
	if divident%divisor == 0 {
		return divident / divisor
	}
	return (divident / divisor) + 1
}

var zeroblkinit = make([]byte, 1024)

// zero out a freshly allocated chunk payload, reference slots in a
// reused chunk must come up nil.
func zerochunk(buf []byte) {
	for len(buf) > 0 {
		n := copy(buf, zeroblkinit)
		buf = buf[n:]
	}
}
