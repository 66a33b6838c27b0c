package codec

import (
	"github.com/iotaledger/hive.go/marshalutil"

	"github.com/leasenet/ledgerclient/common"
	"github.com/leasenet/ledgerclient/types"
)

// host block slot widths
const (
	CountryCodeSize  = 2
	CPUModelSize     = 40
	DescriptionSize  = 26
	EmailSize        = 40
	TokenIDSize      = 32
	HostVersionSize  = 3
	HostRegBlockSize = CountryCodeSize + 4*4 + CPUModelSize + 2 + 2 + DescriptionSize + EmailSize
	HostUpdateSize   = TokenIDSize + 5*4 + DescriptionSize + HostVersionSize
)

// HostRegistration is the parameter block of a host registration.
// Integers are packed little-endian.
type HostRegistration struct {
	CountryCode    string
	CPUMicrosec    uint32
	RAMMb          uint32
	DiskMb         uint32
	TotalInstances uint32
	CPUModel       string
	CPUCount       uint16
	CPUSpeed       uint16
	Description    string
	Email          string
}

// HostUpdate is the parameter block of a host registration update.
type HostUpdate struct {
	TokenID         [TokenIDSize]byte
	CPUMicrosec     uint32
	RAMMb           uint32
	DiskMb          uint32
	TotalInstances  uint32
	ActiveInstances uint32
	Description     string
	Version         [HostVersionSize]byte
}

func padded(s string, width int) []byte {
	b := make([]byte, width)
	common.PutPadded(b, s)
	return b
}

// EncodeHostRegistration packs r into 128 bytes. Text longer than its
// slot is truncated.
func EncodeHostRegistration(r *HostRegistration) []byte {
	m := marshalutil.New(HostRegBlockSize)
	m.WriteBytes(padded(r.CountryCode, CountryCodeSize))
	m.WriteUint32(r.CPUMicrosec)
	m.WriteUint32(r.RAMMb)
	m.WriteUint32(r.DiskMb)
	m.WriteUint32(r.TotalInstances)
	m.WriteBytes(padded(r.CPUModel, CPUModelSize))
	m.WriteUint16(r.CPUCount)
	m.WriteUint16(r.CPUSpeed)
	m.WriteBytes(padded(r.Description, DescriptionSize))
	m.WriteBytes(padded(r.Email, EmailSize))
	return m.Bytes()
}

// DecodeHostRegistration unpacks a 128 byte block.
func DecodeHostRegistration(b []byte) (r *HostRegistration, err error) {
	if len(b) != HostRegBlockSize {
		return nil, types.NewError(types.KindMalformedLayout, "host registration length %d, want %d", len(b), HostRegBlockSize)
	}
	m := marshalutil.New(b)
	r = new(HostRegistration)
	if r.CountryCode, err = readText(m, CountryCodeSize); err != nil {
		return nil, err
	}
	if r.CPUMicrosec, err = m.ReadUint32(); err != nil {
		return nil, wrapRead(err)
	}
	if r.RAMMb, err = m.ReadUint32(); err != nil {
		return nil, wrapRead(err)
	}
	if r.DiskMb, err = m.ReadUint32(); err != nil {
		return nil, wrapRead(err)
	}
	if r.TotalInstances, err = m.ReadUint32(); err != nil {
		return nil, wrapRead(err)
	}
	if r.CPUModel, err = readText(m, CPUModelSize); err != nil {
		return nil, err
	}
	if r.CPUCount, err = m.ReadUint16(); err != nil {
		return nil, wrapRead(err)
	}
	if r.CPUSpeed, err = m.ReadUint16(); err != nil {
		return nil, wrapRead(err)
	}
	if r.Description, err = readText(m, DescriptionSize); err != nil {
		return nil, err
	}
	if r.Email, err = readText(m, EmailSize); err != nil {
		return nil, err
	}
	return r, nil
}

// EncodeHostUpdate packs u into its 81 byte form.
func EncodeHostUpdate(u *HostUpdate) []byte {
	m := marshalutil.New(HostUpdateSize)
	m.WriteBytes(u.TokenID[:])
	m.WriteUint32(u.CPUMicrosec)
	m.WriteUint32(u.RAMMb)
	m.WriteUint32(u.DiskMb)
	m.WriteUint32(u.TotalInstances)
	m.WriteUint32(u.ActiveInstances)
	m.WriteBytes(padded(u.Description, DescriptionSize))
	m.WriteBytes(u.Version[:])
	return m.Bytes()
}

// DecodeHostUpdate unpacks an 81 byte update block.
func DecodeHostUpdate(b []byte) (u *HostUpdate, err error) {
	if len(b) != HostUpdateSize {
		return nil, types.NewError(types.KindMalformedLayout, "host update length %d, want %d", len(b), HostUpdateSize)
	}
	m := marshalutil.New(b)
	u = new(HostUpdate)
	tokenID, err := m.ReadBytes(TokenIDSize)
	if err != nil {
		return nil, wrapRead(err)
	}
	copy(u.TokenID[:], tokenID)
	for _, field := range []*uint32{&u.CPUMicrosec, &u.RAMMb, &u.DiskMb, &u.TotalInstances, &u.ActiveInstances} {
		if *field, err = m.ReadUint32(); err != nil {
			return nil, wrapRead(err)
		}
	}
	if u.Description, err = readText(m, DescriptionSize); err != nil {
		return nil, err
	}
	version, err := m.ReadBytes(HostVersionSize)
	if err != nil {
		return nil, wrapRead(err)
	}
	copy(u.Version[:], version)
	return u, nil
}

func readText(m *marshalutil.MarshalUtil, width int) (string, error) {
	b, err := m.ReadBytes(width)
	if err != nil {
		return "", wrapRead(err)
	}
	return common.TrimPadding(b), nil
}

func wrapRead(err error) error {
	return types.WrapError(types.KindMalformedLayout, err, "short block")
}
