package fields

import "testing"

func TestInsertionOrderPreserved(t *testing.T) {
	f := New()
	f.Insert(":method", "GET")
	f.Insert("accept", "*/*")
	f.Insert("accept", "text/html")

	if f.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", f.Len())
	}
	want := []string{":method", "accept", "accept"}
	for i, name := range want {
		if f.At(i).Name != name {
			t.Errorf("At(%d).Name = %q, want %q", i, f.At(i).Name, name)
		}
	}
}

func TestAssignDeletesPriorEntriesThenAppends(t *testing.T) {
	f := New()
	f.Insert("accept", "*/*")
	f.Insert("accept-encoding", "gzip")
	f.Insert("accept", "text/html")

	f.Assign("accept", "application/json")

	if f.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", f.Len())
	}
	if f.At(0).Name != "accept-encoding" {
		t.Errorf("At(0).Name = %q, want accept-encoding", f.At(0).Name)
	}
	if f.At(1).Name != "accept" || f.At(1).Value != "application/json" {
		t.Errorf("At(1) = %+v, want accept=application/json", f.At(1))
	}
}

func TestCaseInsensitiveNameCasePreserved(t *testing.T) {
	f := New()
	f.Insert("Content-Type", "text/plain")

	v, ok := f.Get("content-type")
	if !ok || v != "text/plain" {
		t.Fatalf("Get(content-type) = %q, %v", v, ok)
	}
	if f.At(0).Name != "Content-Type" {
		t.Fatalf("inserted casing not preserved: %q", f.At(0).Name)
	}
}

func TestEqualRange(t *testing.T) {
	f := New()
	f.Insert("set-cookie", "a=1")
	f.Insert("set-cookie", "b=2")
	f.Insert("host", "example.com")

	run := f.EqualRange("set-cookie")
	if len(run) != 2 || run[0].Value != "a=1" || run[1].Value != "b=2" {
		t.Fatalf("EqualRange = %+v", run)
	}
}

func TestCStr(t *testing.T) {
	f := Field{Name: "host", Value: "example.com"}
	if f.CStr() != "host: example.com" {
		t.Fatalf("CStr() = %q", f.CStr())
	}
}
