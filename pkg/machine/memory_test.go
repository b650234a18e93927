package machine

import "testing"

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemoryMap()
	if err := m.InitZero(0x1000, 0x100, "test"); err != nil {
		t.Fatalf("InitZero: %v", err)
	}

	if err := m.Write32(0x1004, 0xCAFEBABE); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	got, err := m.Read32(0x1004)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if got != 0xCAFEBABE {
		t.Errorf("Read32 = %#x, want 0xCAFEBABE", got)
	}

	if err := m.Write64(0x1008, 0x0123456789ABCDEF); err != nil {
		t.Fatalf("Write64: %v", err)
	}
	got64, err := m.Read64(0x1008)
	if err != nil {
		t.Fatalf("Read64: %v", err)
	}
	if got64 != 0x0123456789ABCDEF {
		t.Errorf("Read64 = %#x, want 0x0123456789ABCDEF", got64)
	}
}

func TestMemoryRegionOverlapRejected(t *testing.T) {
	m := NewMemoryMap()
	if err := m.InitZero(0x1000, 0x100, "a"); err != nil {
		t.Fatalf("InitZero: %v", err)
	}
	if err := m.InitZero(0x1000, 0x10, "b"); err == nil {
		t.Fatal("expected RegionOverlap error, got nil")
	} else if err.Kind != KindRegionOverlap {
		t.Errorf("err.Kind = %v, want KindRegionOverlap", err.Kind)
	}
}

func TestMemoryOutOfBounds(t *testing.T) {
	m := NewMemoryMap()
	if err := m.InitZero(0x1000, 0x10, "small"); err != nil {
		t.Fatalf("InitZero: %v", err)
	}
	if _, err := m.Read64(0x100C); err == nil {
		t.Fatal("expected out-of-bounds error reading across the region end")
	} else if err.Kind != KindOutOfBounds {
		t.Errorf("err.Kind = %v, want KindOutOfBounds", err.Kind)
	}
}

func TestReadWriteWidthDispatch(t *testing.T) {
	m := NewMemoryMap()
	if err := m.InitZero(0x2000, 0x20, "w"); err != nil {
		t.Fatalf("InitZero: %v", err)
	}
	if err := m.WriteWidth(0x2000, 16, 0xBEEF); err != nil {
		t.Fatalf("WriteWidth: %v", err)
	}
	v, err := m.ReadWidth(0x2000, 16)
	if err != nil {
		t.Fatalf("ReadWidth: %v", err)
	}
	if v != 0xBEEF {
		t.Errorf("ReadWidth(16) = %#x, want 0xBEEF", v)
	}
	if _, err := m.ReadWidth(0x2000, 7); err == nil {
		t.Fatal("expected an error for an unsupported width")
	}
}
