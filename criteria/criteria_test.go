package criteria

import (
	"testing"
)

func TestZeroMatch(t *testing.T) {
	c1 := Criteria{}
	c2 := Criteria{}

	if !c1.Match(c2) || !c2.Match(c1) {
		t.Fail()
	}
}

func TestIdentifyMatch(t *testing.T) {
	c1 := Criteria{
		Set:    BitDLType,
		DlType: 0x0800,
	}

	if !c1.Match(c1) {
		t.Fail()
	}
}

func TestLessThanMatch(t *testing.T) {
	c1 := Criteria{}
	c2 := Criteria{
		Set:    BitDLType,
		DlType: 0x0800,
	}

	if !c1.Match(c2) {
		t.Fail()
	}
}

func TestGreaterThanMatch(t *testing.T) {
	c1 := Criteria{
		Set:    BitDLType,
		DlType: 0x0800,
	}
	c2 := Criteria{}
	if c1.Match(c2) {
		t.Fail()
	}
}

func TestInPortMatch(t *testing.T) {
	c1 := Criteria{
		Set:    BitInPort,
		InPort: 7,
	}
	c2 := Criteria{
		Set:    BitDLType | BitInPort,
		DlType: 0x0800,
		InPort: 7,
	}

	if !c1.Match(c2) {
		t.Fail()
	}

	c2.InPort = 8
	if c1.Match(c2) {
		t.Fail()
	}
}

func TestDiffDlTypeMatch(t *testing.T) {
	c1 := Criteria{
		Set:    BitDLType,
		DlType: 0x0800,
	}
	c2 := Criteria{
		Set:    BitDLType,
		DlType: 0x0810,
	}

	if c1.Match(c2) {
		t.Fail()
	}
}
