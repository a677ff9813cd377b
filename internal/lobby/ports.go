package lobby

import (
	"fmt"
	"net"

	"github.com/twoseat/arcade/internal/netutil"
)

// portAllocator opens match-runtime listeners by scanning forward from a
// cursor, wrapping back to minPort once it passes maxPort, grounded on
// open_game_listener in lobby_server.cpp. A port already in use by
// something else on the host is simply skipped, exactly as the original
// treats a failed bind as "try the next candidate".
type portAllocator struct {
	bindIP  string
	minPort uint16
	maxPort uint16
	next    uint16
}

const maxPortAttempts = 2000

func newPortAllocator(bindIP string, minPort, maxPort uint16) *portAllocator {
	return &portAllocator{bindIP: bindIP, minPort: minPort, maxPort: maxPort, next: minPort}
}

// openListener returns a bound listener and the port it landed on.
func (p *portAllocator) openListener() (net.Listener, uint16, error) {
	if p.next < p.minPort || p.next > p.maxPort {
		p.next = p.minPort
	}

	for attempt := 0; attempt < maxPortAttempts; attempt++ {
		candidate := p.next
		if candidate >= p.maxPort {
			p.next = p.minPort
		} else {
			p.next = candidate + 1
		}

		ln, err := netutil.Listen(p.bindIP, candidate)
		if err == nil {
			return ln, candidate, nil
		}
	}
	return nil, 0, fmt.Errorf("lobby: no free port found in [%d, %d] after %d attempts", p.minPort, p.maxPort, maxPortAttempts)
}
