// Package timesync keeps the logical clock aligned with an NTP server.
package timesync

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"time"

	"homedash/internal/fault"
)

// ntpEpochOffset is the number of seconds between 1900-01-01 and 1970-01-01.
const ntpEpochOffset = 2208988800

const (
	packetSize   = 48
	queryTimeout = 5 * time.Second
)

var (
	errShortResponse = errors.New("sntp: short response")
	errMode          = errors.New("sntp: response mode is not server (4)")
	errOriginate     = errors.New("sntp: originate timestamp mismatch")
	errZeroTransmit  = errors.New("sntp: server transmit timestamp is zero")
)

// DialFunc opens a connection; netpool.Pool.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Query performs one SNTPv4 exchange with host (port 123 unless given) and
// returns the server transmit time as Unix seconds.
func Query(ctx context.Context, dial DialFunc, host string) (int64, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "123")
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	conn, err := dial(ctx, "udp", addr)
	if err != nil {
		if fault.KindOf(err) == fault.KindUnknown {
			err = fault.Transport("sntp: dial "+addr, err)
		}
		return 0, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := make([]byte, packetSize)
	req[0] = 0x23 // LI=0, VN=4, mode=3 (client)
	sec, frac := toNTP(time.Now())
	binary.BigEndian.PutUint32(req[40:44], sec)
	binary.BigEndian.PutUint32(req[44:48], frac)

	if _, err := conn.Write(req); err != nil {
		return 0, fault.Transport("sntp: send", err)
	}

	resp := make([]byte, packetSize)
	n, err := conn.Read(resp)
	if err != nil {
		return 0, fault.Transport("sntp: receive", err)
	}
	if n < packetSize {
		return 0, fault.Decode("sntp: parse", errShortResponse)
	}
	if resp[0]&0x07 != 4 {
		return 0, fault.Decode("sntp: parse", errMode)
	}
	if binary.BigEndian.Uint32(resp[24:28]) != sec || binary.BigEndian.Uint32(resp[28:32]) != frac {
		return 0, fault.Decode("sntp: parse", errOriginate)
	}

	txSec := binary.BigEndian.Uint32(resp[40:44])
	if txSec == 0 {
		return 0, fault.Decode("sntp: parse", errZeroTransmit)
	}
	return int64(txSec) - ntpEpochOffset, nil
}

func toNTP(t time.Time) (sec, frac uint32) {
	sec = uint32(t.Unix() + ntpEpochOffset)
	frac = uint32(uint64(t.Nanosecond()) * (1 << 32) / uint64(time.Second))
	return sec, frac
}
