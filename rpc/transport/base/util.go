package base

import (
	"encoding/binary"
	"io"
	"net"
)

// Wire frame: a fixed header followed by the serialized message. The header
// carries the target shard, the request ID that pairs a response with its
// waiting caller, and the payload length. All integers big endian.
const (
	frameShardOff   = 0
	frameRequestOff = 8
	frameLenOff     = 16
	frameHeaderLen  = 20
)

func writeFrame(conn net.Conn, shardID uint64, requestID uint64, data []byte) error {
	header := make([]byte, frameHeaderLen)
	binary.BigEndian.PutUint64(header[frameShardOff:], shardID)
	binary.BigEndian.PutUint64(header[frameRequestOff:], requestID)
	binary.BigEndian.PutUint32(header[frameLenOff:], uint32(len(data)))

	// One writev syscall for header + payload
	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads one frame into buf, allocating a larger buffer only when
// the payload does not fit. The returned slice aliases the buffer used and
// is only valid until the next read.
func readFrame(conn net.Conn, buf []byte) (shardID uint64, requestID uint64, data []byte, err error) {
	if len(buf) < frameHeaderLen {
		buf = make([]byte, frameHeaderLen)
	}

	if _, err := io.ReadFull(conn, buf[:frameHeaderLen]); err != nil {
		return 0, 0, nil, err
	}

	shardID = binary.BigEndian.Uint64(buf[frameShardOff:])
	requestID = binary.BigEndian.Uint64(buf[frameRequestOff:])
	contentLength := binary.BigEndian.Uint32(buf[frameLenOff:])

	if contentLength == 0 {
		return shardID, requestID, []byte{}, nil
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}

	return shardID, requestID, buf[:contentLength], nil
}
