package nbt

import (
	"bytes"
	"testing"
)

func TestByteArrayRoundTrip(t *testing.T) {
	c := NewCompound()
	c.Put("Blocks", &ByteArray{Bytes: []byte{1, 2, 3, 4}})
	c.Put("xPos", &Int{Value32: 7})

	data := Serialize(c)
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ba, ok := got.Get("Blocks").(*ByteArray)
	if !ok || !bytes.Equal(ba.Bytes, []byte{1, 2, 3, 4}) {
		t.Errorf("Blocks = %#v", got.Get("Blocks"))
	}
	xp, ok := got.Get("xPos").(*Int)
	if !ok || xp.Value32 != 7 {
		t.Errorf("xPos = %#v", got.Get("xPos"))
	}

	if !bytes.Equal(Serialize(got), data) {
		t.Errorf("re-serialization did not reproduce original bytes")
	}
}

func TestPutPreservesInsertionOrderOnReplace(t *testing.T) {
	c := NewCompound()
	c.Put("A", &Byte{Value8: 1})
	c.Put("B", &Byte{Value8: 2})
	c.Put("A", &Byte{Value8: 9}) // replace, should not move to the end

	names := c.Names()
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Fatalf("Names() = %v, want [A B]", names)
	}
	if c.Get("A").(*Byte).Value8 != 9 {
		t.Errorf("A was not replaced")
	}
}

func TestNestedCompoundAndList(t *testing.T) {
	inner := NewCompound()
	inner.Put("Health", &Short{Value16: 20})

	list := &List{ElemType: TagInt, Elems: []Value{&Int{Value32: 1}, &Int{Value32: 2}}}

	c := NewCompound()
	c.Put("Entity", inner)
	c.Put("Pos", list)

	data := Serialize(c)
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	gotInner, ok := got.Get("Entity").(*Compound)
	if !ok || gotInner.Get("Health").(*Short).Value16 != 20 {
		t.Errorf("Entity compound not round-tripped: %#v", got.Get("Entity"))
	}
	gotList, ok := got.Get("Pos").(*List)
	if !ok || len(gotList.Elems) != 2 || gotList.Elems[1].(*Int).Value32 != 2 {
		t.Errorf("Pos list not round-tripped: %#v", got.Get("Pos"))
	}
}

func TestParseRejectsTruncatedByteArray(t *testing.T) {
	// TAG_Byte_Array length says 2 bytes follow, but the data is cut off
	// after the first (dropping the second byte and the TAG_End after it).
	c := NewCompound()
	c.Put("Blocks", &ByteArray{Bytes: []byte{1, 2}})
	data := Serialize(c)
	truncated := data[:len(data)-2]

	if _, err := Parse(truncated); err == nil {
		t.Fatal("expected an error parsing truncated data")
	}
}

func TestParseRejectsUnknownTag(t *testing.T) {
	data := []byte{0x7f, 0x00, 0x01, 'x'} // tag 0x7f is not a valid NBT tag
	if _, err := Parse(data); err == nil {
		t.Fatal("expected an error parsing an unknown tag")
	}
}

func TestRootRoundTrip(t *testing.T) {
	level := NewCompound()
	level.Put("Blocks", &ByteArray{Bytes: []byte{0x01, 0x02}})
	level.Put("xPos", &Int{Value32: 3})
	level.Put("zPos", &Int{Value32: -4})

	root := NewCompound()
	root.Put("", level)

	data := SerializeRoot(root)
	got, err := ParseRoot(data)
	if err != nil {
		t.Fatalf("ParseRoot: %v", err)
	}

	gotLevel, ok := got.Get("").(*Compound)
	if !ok {
		t.Fatalf("root has no \"\" child: %#v", got)
	}
	if gotLevel.Get("xPos").(*Int).Value32 != 3 {
		t.Errorf("xPos = %#v", gotLevel.Get("xPos"))
	}
	if gotLevel.Get("zPos").(*Int).Value32 != -4 {
		t.Errorf("zPos = %#v", gotLevel.Get("zPos"))
	}
}

func TestParseRootRejectsNonCompound(t *testing.T) {
	data := []byte{TagByte, 0x00, 0x00, 0x05}
	if _, err := ParseRoot(data); err == nil {
		t.Fatal("expected an error for a non-compound root tag")
	}
}
