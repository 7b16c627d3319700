package tasklist

import (
	"bytes"
	"fmt"

	"github.com/jamsocket/aper/pkg/aper"
	"github.com/jamsocket/aper/pkg/overlay"
	"github.com/jamsocket/aper/pkg/wire"
)

// IntentKind tags the operations a client can request.
type IntentKind byte

const (
	KindSetTitle IntentKind = iota
	KindCreate
	KindRename
	KindSetDone
	KindRemoveCompleted
)

// Place says where a created task lands in the display order.
type Place byte

const (
	PlaceEnd Place = iota
	PlaceTop
	PlaceBetween
)

// Intent is one requested change, as constructed by a client and decoded
// by Apply on both the server and every replaying client.
type Intent struct {
	Kind   IntentKind
	TaskID string
	Name   string // new task name (Create, Rename) or list title (SetTitle)
	Done   bool

	// Placement, meaningful only for Create.
	Place    Place
	BeforeID overlay.ElementID // PlaceBetween: existing neighbor on the left
	AfterID  overlay.ElementID // PlaceBetween: existing neighbor on the right
}

// Encode renders the intent as wire bytes for Submit.
func (i Intent) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(i.Kind))
	writeStr := func(s string) { _ = wire.EncodeBytes(&buf, []byte(s)) }
	switch i.Kind {
	case KindSetTitle:
		writeStr(i.Name)
	case KindCreate:
		writeStr(i.TaskID)
		writeStr(i.Name)
		buf.WriteByte(byte(i.Place))
		if i.Place == PlaceBetween {
			_ = wire.EncodeBytes(&buf, i.BeforeID)
			_ = wire.EncodeBytes(&buf, i.AfterID)
		}
	case KindRename:
		writeStr(i.TaskID)
		writeStr(i.Name)
	case KindSetDone:
		writeStr(i.TaskID)
		if i.Done {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindRemoveCompleted:
	}
	return buf.Bytes()
}

// DecodeIntent parses wire bytes back into an Intent.
func DecodeIntent(b []byte) (Intent, error) {
	r := bytes.NewReader(b)
	kindByte, err := r.ReadByte()
	if err != nil {
		return Intent{}, fmt.Errorf("tasklist: decode intent kind: %w", err)
	}
	i := Intent{Kind: IntentKind(kindByte)}
	readStr := func() (string, error) {
		raw, err := wire.DecodeBytes(r)
		return string(raw), err
	}
	switch i.Kind {
	case KindSetTitle:
		if i.Name, err = readStr(); err != nil {
			return Intent{}, err
		}
	case KindCreate:
		if i.TaskID, err = readStr(); err != nil {
			return Intent{}, err
		}
		if i.Name, err = readStr(); err != nil {
			return Intent{}, err
		}
		placeByte, err := r.ReadByte()
		if err != nil {
			return Intent{}, fmt.Errorf("tasklist: decode intent place: %w", err)
		}
		i.Place = Place(placeByte)
		if i.Place == PlaceBetween {
			if i.BeforeID, err = wire.DecodeBytes(r); err != nil {
				return Intent{}, err
			}
			if i.AfterID, err = wire.DecodeBytes(r); err != nil {
				return Intent{}, err
			}
		}
	case KindRename:
		if i.TaskID, err = readStr(); err != nil {
			return Intent{}, err
		}
		if i.Name, err = readStr(); err != nil {
			return Intent{}, err
		}
	case KindSetDone:
		if i.TaskID, err = readStr(); err != nil {
			return Intent{}, err
		}
		doneByte, err := r.ReadByte()
		if err != nil {
			return Intent{}, fmt.Errorf("tasklist: decode intent done flag: %w", err)
		}
		i.Done = doneByte != 0
	case KindRemoveCompleted:
	default:
		return Intent{}, fmt.Errorf("tasklist: unknown intent kind %d", kindByte)
	}
	if r.Len() != 0 {
		return Intent{}, fmt.Errorf("tasklist: %d trailing bytes after intent", r.Len())
	}
	return i, nil
}

// Decode is the ServerEngine DecodeFn: it validates shape without applying.
func Decode(intentBytes []byte) error {
	_, err := DecodeIntent(intentBytes)
	return err
}

// Apply is the deterministic ApplyFn for a TaskList. It reads nothing but
// the store, the intent, and metadata.ClientID (the list-position
// tiebreaker), so speculative and authoritative application agree.
func Apply(h overlay.Handle, intentBytes []byte, metadata aper.IntentMetadata) error {
	intent, err := DecodeIntent(intentBytes)
	if err != nil {
		return err
	}
	l := Attach(h)

	switch intent.Kind {
	case KindSetTitle:
		l.Title.Set(intent.Name)

	case KindCreate:
		if intent.TaskID == "" {
			return fmt.Errorf("tasklist: create with empty task id")
		}
		if _, exists := l.Tasks.Get(intent.TaskID); exists {
			return fmt.Errorf("tasklist: task %q already exists", intent.TaskID)
		}
		task := l.Tasks.GetOrCreate(intent.TaskID)
		task.Name.Set(intent.Name)

		clientID := []byte(metadata.ClientID)
		var slot overlay.Atom[string]
		switch intent.Place {
		case PlaceTop:
			_, slot = l.Order.Prepend(clientID)
		case PlaceBetween:
			_, slot = l.Order.InsertBetween(intent.BeforeID, intent.AfterID, clientID)
		default:
			_, slot = l.Order.Append(clientID)
		}
		slot.Set(intent.TaskID)

	case KindRename:
		task, ok := l.Tasks.Get(intent.TaskID)
		if !ok {
			return fmt.Errorf("tasklist: no task %q", intent.TaskID)
		}
		task.Name.Set(intent.Name)

	case KindSetDone:
		task, ok := l.Tasks.Get(intent.TaskID)
		if !ok {
			return fmt.Errorf("tasklist: no task %q", intent.TaskID)
		}
		was := task.Done.Get()
		if was == intent.Done {
			return nil // no-op: the server acks without a version bump
		}
		task.Done.Set(intent.Done)
		if intent.Done {
			l.CompletedTotal.Add(1)
		} else {
			l.CompletedTotal.Subtract(1)
		}

	case KindRemoveCompleted:
		for _, entry := range l.Tasks.Iter() {
			if !entry.Value.Done.Get() {
				continue
			}
			if elemID, ok := l.orderElement(entry.Key); ok {
				l.Order.Delete(elemID)
			}
			l.Tasks.Delete(entry.Key)
		}
	}
	return nil
}
