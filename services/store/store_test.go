package store

import (
	"errors"
	"testing"

	"einkcode-go/errcode"
)

func TestUpdateCommitsOnSuccess(t *testing.T) {
	m := NewMem()
	err := Update(m, Namespace, func(w Writer) error {
		if err := w.Put(KeyMode, "sensor"); err != nil {
			return err
		}
		if err := PutInt(w, KeyRefreshInterval, 10); err != nil {
			return err
		}
		return PutBool(w, KeySkipBLE, true)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	_ = View(m, Namespace, func(r Reader) error {
		if GetString(r, KeyMode, "") != "sensor" {
			t.Fatal("mode not persisted")
		}
		if GetInt(r, KeyRefreshInterval, 0) != 10 {
			t.Fatal("interval not persisted")
		}
		if !GetBool(r, KeySkipBLE) {
			t.Fatal("skip flag not persisted")
		}
		return nil
	})
}

func TestUpdateDiscardsOnError(t *testing.T) {
	m := NewMem()
	boom := errors.New("boom")
	err := Update(m, Namespace, func(w Writer) error {
		_ = w.Put(KeyMode, "fun")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(m.Snapshot(Namespace)) != 0 {
		t.Fatal("failed update must not leave partial writes")
	}
}

func TestCommitFailureIsReported(t *testing.T) {
	m := NewMem()
	m.FailCommit = errors.New("flash")
	err := Update(m, Namespace, func(w Writer) error { return w.Put(KeyMode, "x") })
	if errcode.Of(err) != errcode.StoreError {
		t.Fatalf("code = %q, want store_error", errcode.Of(err))
	}
	if _, ok := m.Snapshot(Namespace)[KeyMode]; ok {
		t.Fatal("value visible after failed commit")
	}
}

func TestViewIsReadOnly(t *testing.T) {
	m := NewMem()
	err := View(m, Namespace, func(r Reader) error {
		return r.(Writer).Put(KeyMode, "x")
	})
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("err = %v, want read-only", err)
	}
}

func TestRemoveAndDefaults(t *testing.T) {
	m := NewMem()
	_ = Update(m, Namespace, func(w Writer) error { return w.Put(KeyRefreshInterval, "x") })
	_ = View(m, Namespace, func(r Reader) error {
		if GetInt(r, KeyRefreshInterval, 7) != 7 {
			t.Fatal("unparseable int should fall back to default")
		}
		return nil
	})
	_ = Update(m, Namespace, func(w Writer) error { return w.Remove(KeyRefreshInterval) })
	if _, ok := m.Snapshot(Namespace)[KeyRefreshInterval]; ok {
		t.Fatal("remove did not persist")
	}
}
