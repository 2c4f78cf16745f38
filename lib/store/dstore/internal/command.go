package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/dce-cluster/dce/lib/db"
)

// CommandType defines the possible mutations for the state machine.
type CommandType uint8

const (
	CommandTSet           CommandType = iota // Insert or update an entry.
	CommandTSetTTLIfUnset                    // Insert an entry with optional TTL if it does not exist.
	CommandTDelete                           // Delete an entry.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTSet:
		return "Set"
	case CommandTSetTTLIfUnset:
		return "SetTTLIfUnset"
	case CommandTDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// Used for checking whether the engine supports a given operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTSet:
		return db.FeatureSet, nil
	case CommandTSetTTLIfUnset:
		return db.FeatureSetTTLIfUnset, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a single entry in the raft log.
type Command struct {
	Type   CommandType
	Key    string
	TTLSec uint64
	Value  []byte
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return 1 + 8 + 4 + len(command.Key) + len(command.Value) // Type + TTL + KeyLen + Key + Value
}

// Serialize encodes a command into a byte array with the format:
// 1 byte operation type,
// 8 bytes ttl seconds,
// 4 bytes key length (big endian),
// N bytes key data,
// remaining bytes value data (optional).
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint64(result[1:9], command.TTLSec)
	binary.BigEndian.PutUint32(result[9:13], uint32(len(command.Key)))

	copy(result[13:], command.Key)
	if command.Value != nil {
		copy(result[13+len(command.Key):], command.Value)
	}

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	// Minimum size: 1 (Type) + 8 (TTL) + 4 (KeyLen) = 13 bytes
	if len(data) < 13 {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.TTLSec = binary.BigEndian.Uint64(data[1:9])
	keyLen := binary.BigEndian.Uint32(data[9:13])

	if len(data) < 13+int(keyLen) {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}
	command.Key = string(data[13 : 13+keyLen])

	if valueLen := len(data) - (13 + int(keyLen)); valueLen > 0 {
		// Reuse an existing buffer where possible to reduce allocations
		if command.Value == nil || cap(command.Value) < valueLen {
			command.Value = make([]byte, valueLen)
		} else {
			command.Value = command.Value[:valueLen]
		}
		copy(command.Value, data[13+int(keyLen):])
	} else {
		command.Value = nil
	}

	return nil
}
