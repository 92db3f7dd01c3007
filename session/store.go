// Package session is the durable store of named conversation contexts. Every
// mutating operation commits to disk before it returns; process restart
// reconstructs every session exactly as last committed.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"encoding/json"

	"github.com/google/uuid"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/internal/fsstore"
)

var (
	ErrNotFound      = errors.New("session: not found")
	ErrAlreadyExists = errors.New("session: already exists")
	ErrInvalidName   = errors.New("session: invalid name")
	ErrLastSession   = errors.New("session: cannot delete the last session")
)

const (
	maxNameLen         = 64
	defaultSessionName = "main"
)

type Store struct {
	root string
	log  *slog.Logger
	now  func() time.Time
}

func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, log: logger, now: time.Now}
}

func (s *Store) ownerDir(owner int64) string {
	return filepath.Join(s.root, "owners", strconv.FormatInt(owner, 10))
}

func (s *Store) profilePath(owner int64) string {
	return filepath.Join(s.ownerDir(owner), "profile.json")
}

func (s *Store) turnsPath(owner int64, sessionID string) string {
	return filepath.Join(s.ownerDir(owner), "sessions", sessionID+".jsonl")
}

func (s *Store) withOwnerLock(ctx context.Context, owner int64, fn func() error) error {
	lockPath, err := fsstore.BuildLockPath(filepath.Join(s.root, ".locks"), "owner."+strconv.FormatInt(owner, 10))
	if err != nil {
		return err
	}
	return fsstore.WithLock(ctx, lockPath, fn)
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return "", fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidName, maxNameLen)
	}
	for _, r := range name {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return "", fmt.Errorf("%w: name contains forbidden character", ErrInvalidName)
		}
	}
	return name, nil
}

func (s *Store) loadProfile(owner int64) (*profile, error) {
	var p profile
	found, err := fsstore.ReadJSON(s.profilePath(owner), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if p.Sessions == nil {
		p.Sessions = make(map[string]*Meta)
	}
	return &p, nil
}

// ensureProfile creates the owner profile with a default session on first
// contact. Caller holds the owner lock.
func (s *Store) ensureProfile(owner int64) (*profile, error) {
	p, err := s.loadProfile(owner)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}
	now := s.now().UTC()
	meta := &Meta{
		ID:         uuid.NewString(),
		Name:       defaultSessionName,
		CreatedAt:  now,
		LastActive: now,
	}
	p = &profile{
		OwnerID:  owner,
		ActiveID: meta.ID,
		Sessions: map[string]*Meta{meta.ID: meta},
	}
	if err := s.commit(owner, p); err != nil {
		return nil, err
	}
	s.log.Info("owner_profile_created", "owner", owner, "session", meta.Name)
	return p, nil
}

func (s *Store) commit(owner int64, p *profile) error {
	return fsstore.WriteJSONAtomic(s.profilePath(owner), p)
}

func (p *profile) byName(name string) (string, *Meta) {
	lowered := strings.ToLower(name)
	for id, meta := range p.Sessions {
		if strings.ToLower(meta.Name) == lowered {
			return id, meta
		}
	}
	return "", nil
}

// Create makes a new named session and activates it.
func (s *Store) Create(ctx context.Context, owner int64, name string) (Meta, error) {
	name, err := validateName(name)
	if err != nil {
		return Meta{}, err
	}
	var created Meta
	err = s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		if _, existing := p.byName(name); existing != nil {
			return fmt.Errorf("%w: %q", ErrAlreadyExists, name)
		}
		now := s.now().UTC()
		meta := &Meta{ID: uuid.NewString(), Name: name, CreatedAt: now, LastActive: now}
		p.Sessions[meta.ID] = meta
		p.ActiveID = meta.ID
		if err := s.commit(owner, p); err != nil {
			return err
		}
		created = *meta
		return nil
	})
	if err != nil {
		return Meta{}, err
	}
	s.log.Info("session_created", "owner", owner, "session", created.Name)
	return created, nil
}

// SwitchActive atomically re-points the owner's active-session pointer.
func (s *Store) SwitchActive(ctx context.Context, owner int64, name string) (Meta, error) {
	var target Meta
	err := s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		id, meta := p.byName(name)
		if meta == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		p.ActiveID = id
		if err := s.commit(owner, p); err != nil {
			return err
		}
		target = *meta
		return nil
	})
	if err != nil {
		return Meta{}, err
	}
	return target, nil
}

func (s *Store) Rename(ctx context.Context, owner int64, oldName, newName string) error {
	newName, err := validateName(newName)
	if err != nil {
		return err
	}
	return s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		if _, taken := p.byName(newName); taken != nil {
			return fmt.Errorf("%w: %q", ErrAlreadyExists, newName)
		}
		_, meta := p.byName(oldName)
		if meta == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, oldName)
		}
		meta.Name = newName
		return s.commit(owner, p)
	})
}

// Delete removes a session and its turn log. Deleting the active session
// re-points the active pointer at the most recently used survivor; the last
// remaining session cannot be deleted.
func (s *Store) Delete(ctx context.Context, owner int64, name string) (Meta, error) {
	var newActive Meta
	err := s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		id, meta := p.byName(name)
		if meta == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		if len(p.Sessions) <= 1 {
			return ErrLastSession
		}
		wasActive := p.ActiveID == id
		delete(p.Sessions, id)
		if wasActive {
			var pick *Meta
			for _, m := range p.Sessions {
				if pick == nil || m.LastActive.After(pick.LastActive) {
					pick = m
				}
			}
			p.ActiveID = pick.ID
		}
		if err := s.commit(owner, p); err != nil {
			return err
		}
		if err := os.Remove(s.turnsPath(owner, id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("session_turns_remove_failed", "owner", owner, "session", name, "error", err.Error())
		}
		newActive = *p.Sessions[p.ActiveID]
		return nil
	})
	if err != nil {
		return Meta{}, err
	}
	s.log.Info("session_deleted", "owner", owner, "session", name)
	return newActive, nil
}

// Clear wipes a session's history; the session object itself survives.
func (s *Store) Clear(ctx context.Context, owner int64, name string) error {
	return s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		id, meta := p.byName(name)
		if meta == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		if err := fsstore.TruncateJSONL(s.turnsPath(owner, id)); err != nil {
			return err
		}
		meta.LastActive = s.now().UTC()
		return s.commit(owner, p)
	})
}

// GetActive returns the owner's active session, creating the default session
// for a first-time owner.
func (s *Store) GetActive(ctx context.Context, owner int64) (Meta, error) {
	var active Meta
	err := s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		meta, ok := p.Sessions[p.ActiveID]
		if !ok {
			// Repair a dangling pointer rather than failing the owner.
			for id, m := range p.Sessions {
				p.ActiveID, meta = id, m
				break
			}
			if meta == nil {
				return fmt.Errorf("%w: no sessions", ErrNotFound)
			}
			if err := s.commit(owner, p); err != nil {
				return err
			}
		}
		active = *meta
		return nil
	})
	if err != nil {
		return Meta{}, err
	}
	return active, nil
}

func (s *Store) SetInstruction(ctx context.Context, owner int64, name, instruction string) error {
	return s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		_, meta := p.byName(name)
		if meta == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		meta.Instruction = strings.TrimSpace(instruction)
		return s.commit(owner, p)
	})
}

// AppendTurn is the sole mutator of a session's turn sequence. The turn is
// durably appended before the profile's last-active stamp moves.
func (s *Store) AppendTurn(ctx context.Context, owner int64, name string, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now().UTC()
	}
	return s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		id, meta := p.byName(name)
		if meta == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		if err := fsstore.AppendJSONL(s.turnsPath(owner, id), turn); err != nil {
			return err
		}
		meta.LastActive = s.now().UTC()
		return s.commit(owner, p)
	})
}

// Turns replays a session's history in append order.
func (s *Store) Turns(ctx context.Context, owner int64, name string) ([]Turn, error) {
	var out []Turn
	err := s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		id, meta := p.byName(name)
		if meta == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return fsstore.ReadJSONL(s.turnsPath(owner, id), func(line []byte) error {
			var t Turn
			if err := json.Unmarshal(line, &t); err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddUsage folds one backend call's token accounting into the session.
func (s *Store) AddUsage(ctx context.Context, owner int64, name string, prompt, output int, cost float64) error {
	return s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		_, meta := p.byName(name)
		if meta == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		meta.Usage.PromptTokens += prompt
		meta.Usage.OutputTokens += output
		meta.Usage.TotalTokens += prompt + output
		meta.Usage.TotalCost += cost
		return s.commit(owner, p)
	})
}

// List returns every session of the owner, active first, then most recently
// used.
func (s *Store) List(ctx context.Context, owner int64) ([]Info, error) {
	var out []Info
	err := s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		for id, meta := range p.Sessions {
			info := Info{Meta: *meta, Active: id == p.ActiveID}
			info.TurnCount, info.SizeBytes = s.turnLogStats(owner, id)
			out = append(out, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Active != out[j].Active {
			return out[i].Active
		}
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out, nil
}

// Stats reports one session's turn count, byte size and last-active time.
func (s *Store) Stats(ctx context.Context, owner int64, name string) (Info, error) {
	var out Info
	err := s.withOwnerLock(ctx, owner, func() error {
		p, err := s.ensureProfile(owner)
		if err != nil {
			return err
		}
		id, meta := p.byName(name)
		if meta == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		out = Info{Meta: *meta, Active: id == p.ActiveID}
		out.TurnCount, out.SizeBytes = s.turnLogStats(owner, id)
		return nil
	})
	if err != nil {
		return Info{}, err
	}
	return out, nil
}

func (s *Store) turnLogStats(owner int64, sessionID string) (int, int64) {
	path := s.turnsPath(owner, sessionID)
	count := 0
	_ = fsstore.ReadJSONL(path, func([]byte) error {
		count++
		return nil
	})
	var size int64
	if fi, err := os.Stat(path); err == nil {
		size = fi.Size()
	}
	return count, size
}
