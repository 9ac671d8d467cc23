package guid

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// Version is the only layout version accepted by Parse.
	Version = 1

	byteLen = 22
	textLen = 36
)

// ObjectType tags what a GUID identifies.
type ObjectType uint8

const (
	Unassigned  ObjectType = 0
	Unit        ObjectType = 2
	ObjectGroup ObjectType = 3
	Object      ObjectType = 4
	Operation   ObjectType = 7
	Event       ObjectType = 8
)

var objectTypeNames = map[ObjectType]string{
	Unassigned:  "unassigned",
	Unit:        "unit",
	ObjectGroup: "objectgroup",
	Object:      "object",
	Operation:   "operation",
	Event:       "event",
}

func (t ObjectType) String() string {
	if name, ok := objectTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseObjectType maps a name such as "unit" back to its ObjectType.
func ParseObjectType(name string) (ObjectType, error) {
	for t, n := range objectTypeNames {
		if n == strings.ToLower(name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown object type %q", name)
}

const alphabet = "abcdefghijklmnopqrstuvwxyz234567"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// ErrInvalid is returned (wrapped) for every malformed GUID.
var ErrInvalid = errors.New("invalid guid")

// GUID is a decoded identifier. The zero value is not valid.
type GUID struct {
	raw  [byteLen]byte
	text string
}

// Parse decodes and validates s.
func Parse(s string) (GUID, error) {
	if len(s) != textLen {
		return GUID{}, fmt.Errorf("%w: %q: length %d, want %d", ErrInvalid, s, len(s), textLen)
	}
	b, err := encoding.DecodeString(s)
	if err != nil {
		return GUID{}, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	if len(b) != byteLen {
		return GUID{}, fmt.Errorf("%w: %q: decoded %d bytes", ErrInvalid, s, len(b))
	}
	// The last character carries 4 padding bits that must be zero, so
	// each GUID has exactly one text form.
	if encoding.EncodeToString(b) != s {
		return GUID{}, fmt.Errorf("%w: %q: non-zero trailing bits", ErrInvalid, s)
	}
	if b[0] != Version {
		return GUID{}, fmt.Errorf("%w: %q: version %d", ErrInvalid, s, b[0])
	}
	var g GUID
	copy(g.raw[:], b)
	g.text = s
	return g, nil
}

// Valid reports whether s parses as a GUID.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func (g GUID) String() string { return g.text }

// IsZero reports whether g was never parsed or generated.
func (g GUID) IsZero() bool { return g.text == "" }

func (g GUID) ObjectType() ObjectType { return ObjectType(g.raw[1]) }

func (g GUID) Tenant() int { return int(int32(binary.BigEndian.Uint32(g.raw[2:6]))) }

func (g GUID) Platform() uint32 { return binary.BigEndian.Uint32(g.raw[6:10]) }

func (g GUID) PID() uint32 { return uint32(g.raw[10])<<16 | uint32(g.raw[11])<<8 | uint32(g.raw[12]) }

// Time returns the creation instant with millisecond precision.
func (g GUID) Time() time.Time {
	var ms uint64
	for _, b := range g.raw[13:19] {
		ms = ms<<8 | uint64(b)
	}
	return time.UnixMilli(int64(ms)).UTC()
}

func (g GUID) Counter() uint32 {
	return uint32(g.raw[19])<<16 | uint32(g.raw[20])<<8 | uint32(g.raw[21])
}

func build(objectType ObjectType, tenant int, platform, pid uint32, ms int64, counter uint32) GUID {
	var g GUID
	g.raw[0] = Version
	g.raw[1] = byte(objectType)
	binary.BigEndian.PutUint32(g.raw[2:6], uint32(int32(tenant)))
	binary.BigEndian.PutUint32(g.raw[6:10], platform)
	g.raw[10], g.raw[11], g.raw[12] = byte(pid>>16), byte(pid>>8), byte(pid)
	u := uint64(ms)
	for i := 18; i >= 13; i-- {
		g.raw[i] = byte(u)
		u >>= 8
	}
	g.raw[19], g.raw[20], g.raw[21] = byte(counter>>16), byte(counter>>8), byte(counter)
	g.text = encoding.EncodeToString(g.raw[:])
	return g
}
