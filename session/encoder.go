package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goMormot/signature"
)

const (
	stateFormatVersionCurrent = 2
	stateFormatVersionV1      = 1
)

const maxServerDataLen = 1<<16 - 1

var (
	errUserNameTooLong   = errors.New("user name too long")
	errServerDataTooLong = errors.New("server data too large")
	errInvalidVersion    = errors.New("invalid session state version")
)

// Encode serializes st into the current binary layout:
//
//	version(1) | sessionID(4) | privateKey(4) | serverTimeOffset(8) |
//	startedAt unix ms(8) | len(1) userName | len(2) serverData
//
// Version 1 omitted serverData. The hex session id is derived on decode.
func Encode(st *State) ([]byte, error) {
	if st == nil || !st.Active() {
		return nil, ErrInactiveState
	}
	if len(st.UserName) > 255 {
		return nil, errUserNameTooLong
	}
	if len(st.ServerData) > maxServerDataLen {
		return nil, errServerDataTooLong
	}

	var buf bytes.Buffer
	buf.WriteByte(stateFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, st.SessionID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, st.PrivateKey); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, st.ServerTimeOffset); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, st.StartedAt.UnixMilli()); err != nil {
		return nil, err
	}

	buf.WriteByte(byte(len(st.UserName)))
	buf.WriteString(st.UserName)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(st.ServerData))); err != nil {
		return nil, err
	}
	buf.Write(st.ServerData)

	return buf.Bytes(), nil
}

// Decode parses data produced by Encode, accepting every known version.
func Decode(data []byte) (*State, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != stateFormatVersionCurrent && version != stateFormatVersionV1 {
		return nil, errInvalidVersion
	}

	st := &State{}
	if err := binary.Read(reader, binary.BigEndian, &st.SessionID); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &st.PrivateKey); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &st.ServerTimeOffset); err != nil {
		return nil, err
	}

	var startedMs int64
	if err := binary.Read(reader, binary.BigEndian, &startedMs); err != nil {
		return nil, err
	}
	st.StartedAt = time.UnixMilli(startedMs)

	nameLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(reader, name); err != nil {
		return nil, err
	}
	st.UserName = string(name)

	if version == stateFormatVersionCurrent {
		var dataLen uint16
		if err := binary.Read(reader, binary.BigEndian, &dataLen); err != nil {
			return nil, err
		}
		if dataLen > 0 {
			st.ServerData = make([]byte, dataLen)
			if _, err := io.ReadFull(reader, st.ServerData); err != nil {
				return nil, err
			}
		}
	}

	if !st.Active() {
		return nil, ErrInactiveState
	}
	st.SessionIDHex8 = signature.Hex8(st.SessionID)

	return st, nil
}
