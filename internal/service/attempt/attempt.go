// Package attempt names capture attempts within a connection.
package attempt

import (
	"fmt"
	"sync/atomic"
)

// Generator hands out attempt IDs of the form "<connection>-cap-N". N is
// shared by every connection using the generator, so IDs never repeat
// within a process.
type Generator struct {
	counter uint64
}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) Next(connectionID string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-cap-%d", connectionID, n)
}
