package preview

import (
	"strings"
	"testing"
)

func TestStorePutGetRevoke(t *testing.T) {
	s := NewStore()

	uri := s.Put([]byte("jpeg"), "image/jpeg")
	if !strings.HasPrefix(uri, Scheme) {
		t.Fatalf("uri %q lacks scheme", uri)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}

	e, ok := s.Get(uri)
	if !ok || string(e.Data) != "jpeg" || e.MIMEType != "image/jpeg" {
		t.Errorf("Get = %+v, %v", e, ok)
	}
	if _, ok := s.Get(ID(uri)); !ok {
		t.Error("Get by bare id failed")
	}

	s.Revoke(uri)
	s.Revoke(uri)
	s.Revoke("")
	if _, ok := s.Get(uri); ok {
		t.Error("revoked uri still resolves")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after revoke", s.Len())
	}
}

func TestStoreUniqueURIs(t *testing.T) {
	s := NewStore()
	a := s.Put(nil, "image/jpeg")
	b := s.Put(nil, "image/jpeg")
	if a == b {
		t.Errorf("duplicate uri %q", a)
	}
}
