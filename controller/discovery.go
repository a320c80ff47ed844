package controller

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qubi-project/qubi-go/internal/observability"
	"github.com/qubi-project/qubi-go/protocol"
)

// Discover finds Qubi modules on the network. It owns an independent
// broadcast-capable endpoint for the duration of the call: each of
// opts.Retries rounds broadcasts one discovery command and collects replies
// until the per-round window (Timeout/Retries) elapses. Replies are
// deduplicated by (module_id, source ip, source port); malformed replies
// are skipped silently. Only endpoint setup or send failures error.
//
// The returned snapshot is the caller's to keep: no registry persists
// across calls.
func Discover(opts DiscoveryOptions) ([]protocol.Module, error) {
	opts = opts.WithDefaults()

	target := net.ParseIP(opts.BroadcastAddress)
	if target == nil || target.To4() == nil {
		return nil, fmt.Errorf("%w: invalid broadcast address %q",
			protocol.ErrValidation, opts.BroadcastAddress)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, fmt.Errorf("%w: open broadcast endpoint: %v", protocol.ErrConnection, err)
	}
	defer conn.Close()
	if err := enableBroadcast(conn); err != nil {
		return nil, fmt.Errorf("%w: enable broadcast: %v", protocol.ErrConnection, err)
	}

	discovery := protocol.Command{
		ModuleID:   "*",
		ModuleType: protocol.ModuleCustom,
		Action:     "discover",
		Params:     map[string]any{},
	}
	payload, err := protocol.EncodeMessage(protocol.NewMessage([]protocol.Command{discovery}, nil))
	if err != nil {
		return nil, err
	}

	dst := &net.UDPAddr{IP: target, Port: opts.Port}
	window := opts.Timeout / time.Duration(opts.Retries)

	seen := make(map[string]struct{})
	var found []protocol.Module
	buf := make([]byte, readBufferSize)

	for round := 0; round < opts.Retries; round++ {
		if _, err := conn.WriteToUDP(payload, dst); err != nil {
			return nil, fmt.Errorf("%w: broadcast: %v", protocol.ErrConnection, err)
		}

		end := time.Now().Add(window)
		if err := conn.SetReadDeadline(end); err != nil {
			return nil, fmt.Errorf("%w: set read deadline: %v", protocol.ErrConnection, err)
		}

		for time.Now().Before(end) {
			n, source, err := conn.ReadFromUDP(buf)
			if err != nil {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					break
				}
				return nil, fmt.Errorf("%w: read: %v", protocol.ErrConnection, err)
			}

			resp, derr := protocol.DecodeResponse(buf[:n])
			if derr != nil {
				continue
			}
			moduleType, ok := resp.Data["module_type"].(string)
			if !ok || moduleType == "" {
				continue
			}

			key := fmt.Sprintf("%s:%s:%d", resp.ModuleID, source.IP.String(), source.Port)
			if _, dup := seen[key]; dup {
				observability.RecordDiscoveryReply(true)
				continue
			}
			seen[key] = struct{}{}
			observability.RecordDiscoveryReply(false)

			found = append(found, protocol.Module{
				ID:       resp.ModuleID,
				Type:     protocol.ModuleType(moduleType),
				IP:       source.IP.String(),
				Port:     source.Port,
				LastSeen: time.Now(),
			})
			log.Debug().
				Str("module", resp.ModuleID).
				Str("type", moduleType).
				Str("source", source.String()).
				Msg("controller: discovered module")
		}
	}

	return found, nil
}
