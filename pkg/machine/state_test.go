package machine

import "testing"

func TestInitStackProgramStartLayout(t *testing.T) {
	s := Empty()
	top := uint64(0x800000)

	if err := s.InitStackProgramStart(top, []string{"/bin/my_binary", "arg1"}, []string{"env1=val1"}); err != nil {
		t.Fatalf("InitStackProgramStart: %v", err)
	}

	sp := s.Reg64(RSP)
	if sp == 0 || sp >= top {
		t.Fatalf("RSP = %#x, expected a value below %#x", sp, top)
	}
	if sp%8 != 0 {
		t.Fatalf("RSP = %#x, expected 8-byte alignment at minimum", sp)
	}

	argc, err := s.Memory().Read64(sp)
	if err != nil {
		t.Fatalf("reading argc: %v", err)
	}
	if argc != 2 {
		t.Errorf("argc = %d, want 2", argc)
	}

	argv0Ptr, err := s.Memory().Read64(sp + 8)
	if err != nil {
		t.Fatalf("reading argv[0] pointer: %v", err)
	}
	argv0Bytes, err := s.Memory().ReadBytes(argv0Ptr, uint64(len("/bin/my_binary")))
	if err != nil {
		t.Fatalf("reading argv[0] string: %v", err)
	}
	if string(argv0Bytes) != "/bin/my_binary" {
		t.Errorf("argv[0] = %q, want \"/bin/my_binary\"", argv0Bytes)
	}

	argvTerminator, err := s.Memory().Read64(sp + 8 + 2*8)
	if err != nil {
		t.Fatalf("reading argv NULL terminator: %v", err)
	}
	if argvTerminator != 0 {
		t.Errorf("argv vector should be NULL-terminated after 2 entries, got %#x", argvTerminator)
	}
}

func TestXMMRoundTrip(t *testing.T) {
	s := Empty()
	s.SetXMM(0, 0x1111111111111111, 0x2222222222222222)
	lo, hi := s.XMM(0)
	if lo != 0x1111111111111111 || hi != 0x2222222222222222 {
		t.Errorf("XMM(0) = (%#x, %#x), want (0x1111111111111111, 0x2222222222222222)", lo, hi)
	}
}

func TestNewSetsCodeAndRIP(t *testing.T) {
	code := []byte{0x90, 0x90, 0x90}
	s := New(code, 0x400000, 0x400001)
	gotCode, gotStart := s.Code()
	if gotStart != 0x400000 {
		t.Errorf("code start = %#x, want 0x400000", gotStart)
	}
	if len(gotCode) != 3 {
		t.Errorf("code length = %d, want 3", len(gotCode))
	}
	if s.RIP() != 0x400001 {
		t.Errorf("RIP = %#x, want 0x400001", s.RIP())
	}
}
