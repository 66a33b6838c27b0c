package codec

import (
	"net/netip"
	"strings"

	. "gopkg.in/check.v1"

	"github.com/leasenet/ledgerclient/common"
)

type LayoutSuite struct{}

var _ = Suite(&LayoutSuite{})

const genesisAddress = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

func sampleLeaseToken(ip string) *LeaseToken {
	t := &LeaseToken{
		Version:     1,
		LeaseIndex:  0x0102,
		LeaseAmount: MustParseFixedPoint("0.000125"),
		Identifier:  0xDEADBEEF,
	}
	for i := range t.HalfTOSHash {
		t.HalfTOSHash[i] = byte(i + 1)
	}
	if ip != "" {
		t.OutboundIP = netip.MustParseAddr(ip)
	}
	return t
}

func (s *LayoutSuite) TestLeaseTokenLayout(c *C) {
	t := sampleLeaseToken("1.2.3.4")
	b := EncodeLeaseToken(t)
	c.Assert(b, HasLen, LeaseTokenSize)
	c.Check(string(b[:8]), Equals, "evrlease")
	c.Check(string(b[8:11]), Equals, "LTV")
	c.Check(b[11:13], DeepEquals, []byte{0, 1})
	c.Check(b[13:15], DeepEquals, []byte{1, 2})
	c.Check(b[15:31], DeepEquals, t.HalfTOSHash[:])
	c.Check(b[31:39], DeepEquals, t.LeaseAmount.Bytes())
	c.Check(b[39:43], DeepEquals, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	c.Check(b[43:48], DeepEquals, []byte{4, 1, 2, 3, 4})
	c.Check(b[48:], DeepEquals, make([]byte, 12))
}

func (s *LayoutSuite) TestLeaseTokenRoundTrip(c *C) {
	for _, ip := range []string{"", "1.2.3.4", "2001:db8::1", "::ffff:10.0.0.1"} {
		t := sampleLeaseToken(ip)
		decoded, err := DecodeLeaseToken(EncodeLeaseToken(t))
		c.Assert(err, IsNil, Commentf("ip %q", ip))
		c.Check(*decoded, Equals, *t, Commentf("ip %q", ip))
	}

	none := EncodeLeaseToken(sampleLeaseToken(""))
	c.Check(none[LegacyLeaseTokenSize:], DeepEquals, make([]byte, IPBlockSize))
}

func (s *LayoutSuite) TestLegacyLeaseToken(c *C) {
	t := sampleLeaseToken("1.2.3.4")
	decoded, err := DecodeLeaseToken(EncodeLeaseToken(t)[:LegacyLeaseTokenSize])
	c.Assert(err, IsNil)
	c.Check(decoded.OutboundIP.IsValid(), Equals, false)
	c.Check(decoded.Identifier, Equals, t.Identifier)
	c.Check(decoded.LeaseAmount, Equals, t.LeaseAmount)
}

func (s *LayoutSuite) TestLeaseTokenErrors(c *C) {
	b := EncodeLeaseToken(sampleLeaseToken(""))
	_, err := DecodeLeaseToken(b[:42])
	c.Check(isMalformed(err), Equals, true)

	bad := append([]byte{}, b...)
	bad[0] = 'x'
	_, err = DecodeLeaseToken(bad)
	c.Check(isMalformed(err), Equals, true)

	bad = append([]byte{}, b...)
	bad[LegacyLeaseTokenSize] = 9
	_, err = DecodeLeaseToken(bad)
	c.Check(isMalformed(err), Equals, true)

	_, err = DecodeLeaseTokenURI("zz")
	c.Check(isMalformed(err), Equals, true)
}

func (s *LayoutSuite) TestLeaseTokenURI(c *C) {
	t := sampleLeaseToken("10.1.1.1")
	uri := LeaseTokenURI(t)
	c.Check(IsLeaseTokenURI(uri), Equals, true)
	c.Check(IsLeaseTokenURI(strings.ToLower(uri)), Equals, true)
	c.Check(IsLeaseTokenURI("00AA"), Equals, false)

	decoded, err := DecodeLeaseTokenURI(uri)
	c.Assert(err, IsNil)
	c.Check(*decoded, Equals, *t)
}

func sampleHostRegistration() *HostRegistration {
	return &HostRegistration{
		CountryCode:    "AU",
		CPUMicrosec:    800000,
		RAMMb:          16384,
		DiskMb:         512000,
		TotalInstances: 8,
		CPUModel:       "Intel(R) Xeon(R) CPU E5-2680",
		CPUCount:       4,
		CPUSpeed:       2600,
		Description:    "fast host",
		Email:          "ops@example.com",
	}
}

func (s *LayoutSuite) TestHostRegistrationLayout(c *C) {
	b := EncodeHostRegistration(sampleHostRegistration())
	c.Assert(b, HasLen, 128)
	c.Check(string(b[:2]), Equals, "AU")
	c.Check(b[2:6], DeepEquals, []byte{0x00, 0x35, 0x0C, 0x00})
	c.Check(common.TrimPadding(b[18:58]), Equals, "Intel(R) Xeon(R) CPU E5-2680")
	c.Check(b[58:60], DeepEquals, []byte{4, 0})
	c.Check(b[60:62], DeepEquals, []byte{0x28, 0x0A})
	c.Check(common.TrimPadding(b[62:88]), Equals, "fast host")
	c.Check(common.TrimPadding(b[88:]), Equals, "ops@example.com")
}

func (s *LayoutSuite) TestHostRegistrationRoundTrip(c *C) {
	r := sampleHostRegistration()
	decoded, err := DecodeHostRegistration(EncodeHostRegistration(r))
	c.Assert(err, IsNil)
	c.Check(decoded, DeepEquals, r)

	r.CPUModel = strings.Repeat("m", 50)
	decoded, err = DecodeHostRegistration(EncodeHostRegistration(r))
	c.Assert(err, IsNil)
	c.Check(decoded.CPUModel, Equals, strings.Repeat("m", CPUModelSize))

	_, err = DecodeHostRegistration(make([]byte, 127))
	c.Check(isMalformed(err), Equals, true)
}

func (s *LayoutSuite) TestHostUpdateRoundTrip(c *C) {
	u := &HostUpdate{
		CPUMicrosec:     900000,
		RAMMb:           8192,
		DiskMb:          102400,
		TotalInstances:  4,
		ActiveInstances: 2,
		Description:     "updated",
		Version:         [3]byte{0, 5, 12},
	}
	u.TokenID[0], u.TokenID[31] = 0xAB, 0xCD
	b := EncodeHostUpdate(u)
	c.Assert(b, HasLen, 81)
	c.Check(b[32:36], DeepEquals, []byte{0xA0, 0xBB, 0x0D, 0x00})
	c.Check(b[78:], DeepEquals, []byte{0, 5, 12})

	decoded, err := DecodeHostUpdate(b)
	c.Assert(err, IsNil)
	c.Check(decoded, DeepEquals, u)

	_, err = DecodeHostUpdate(b[:80])
	c.Check(isMalformed(err), Equals, true)
}

func (s *LayoutSuite) TestStateKeys(c *C) {
	key := StateKey("REGFEE")
	c.Assert(key, HasLen, StateKeySize)
	c.Check(string(key[:9]), Equals, "EVRREGFEE")
	c.Check(key[9:], DeepEquals, make([]byte, 23))
	c.Check(StateKeyHex("REGFEE"), Equals, common.ToHex(key))
	c.Check(IsHostKey(key), Equals, false)

	hostKey, err := HostKey(genesisAddress)
	c.Assert(err, IsNil)
	c.Check(IsHostKey(hostKey), Equals, true)
	c.Check(string(hostKey[:4]), Equals, "EVR\x02")
	c.Check(hostKey[24:], DeepEquals, make([]byte, 8))
	addr, err := HostAddressFromKey(hostKey)
	c.Assert(err, IsNil)
	c.Check(addr, Equals, genesisAddress)

	_, err = HostAddressFromKey(key)
	c.Check(isMalformed(err), Equals, true)
}

func (s *LayoutSuite) TestNamedKeysAreNotHostKeys(c *C) {
	for _, name := range []string{"HOST", "HOSTCOUNT", "HOSTREGFEE", "HBFREQ", "EPOCHSIZE"} {
		c.Check(IsHostKey(StateKey(name)), Equals, false, Commentf("key %s", name))
	}

	hostKey, err := HostKey(genesisAddress)
	c.Assert(err, IsNil)
	hostKey[StateKeySize-1] = 1
	c.Check(IsHostKey(hostKey), Equals, false)
}

func (s *LayoutSuite) TestHostEntry(c *C) {
	hostKey, err := HostKey(genesisAddress)
	c.Assert(err, IsNil)
	entry := &HostEntry{
		Address:      genesisAddress,
		TokenID:      strings.Repeat("AB", 32),
		CountryCode:  "SE",
		TxHash:       strings.Repeat("0F", 32),
		InstanceSize: "2 vcpu, 4GB ram",
		Location:     "stockholm",
	}
	value, err := EncodeHostEntry(entry)
	c.Assert(err, IsNil)
	c.Assert(value, HasLen, 136)

	first, err := DecodeHostEntry(hostKey, value)
	c.Assert(err, IsNil)
	c.Check(first, DeepEquals, entry)
	second, err := DecodeHostEntry(hostKey, value)
	c.Assert(err, IsNil)
	c.Check(second, DeepEquals, first)

	_, err = DecodeHostEntry(hostKey, value[:100])
	c.Check(isMalformed(err), Equals, true)
	_, err = EncodeHostEntry(&HostEntry{TokenID: "AB"})
	c.Check(isMalformed(err), Equals, true)
}

func (s *LayoutSuite) TestLittleEndianIntegers(c *C) {
	v16, err := ReadUint16LE([]byte{0xA6, 0x04})
	c.Assert(err, IsNil)
	c.Check(v16, Equals, uint16(1190))

	v32, err := ReadUint32LE(PutUintLE(70000, 4))
	c.Assert(err, IsNil)
	c.Check(v32, Equals, uint32(70000))

	v64, err := ReadUint64LE(PutUintLE(5120, 8))
	c.Assert(err, IsNil)
	c.Check(v64, Equals, uint64(5120))

	_, err = ReadUint64LE([]byte{1})
	c.Check(isMalformed(err), Equals, true)
	_, err = ReadUint32LE(nil)
	c.Check(isMalformed(err), Equals, true)
	_, err = ReadUint16LE([]byte{1, 2, 3})
	c.Check(isMalformed(err), Equals, true)
}
