package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/internal/models"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
)

// FileRepository keeps the waitlist in memory and mirrors it to a JSON file.
// Every new signup rewrites the whole file. Write failures are logged and the
// in-memory state still advances, so a restart loses signups whose flush failed.
type FileRepository struct {
	mu      sync.Mutex
	path    string
	logger  *log.Logger
	byEmail map[string]*models.WaitlistEntry
	ordered []*models.WaitlistEntry
	nextID  uint

	writeFile func(path string, data []byte) error
}

// OpenFileRepository hydrates from path. A missing file is an empty waitlist;
// an unreadable one is moved aside and the store starts empty.
func OpenFileRepository(path string, logger *log.Logger) (*FileRepository, error) {
	if path == "" {
		return nil, apperrors.NewInvalidRequestError("waitlist file path is empty", nil)
	}
	if logger == nil {
		logger = log.NewLoggerWithJSONOutput()
	}

	r := &FileRepository{
		path:      path,
		logger:    logger.WithComponent("waitlist.file_store"),
		byEmail:   make(map[string]*models.WaitlistEntry),
		nextID:    1,
		writeFile: writeFileAtomic,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.logger.Error("Unable to create waitlist data directory", "path", path, "error", err)
	}

	r.load()

	return r, nil
}

func (r *FileRepository) load() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Info("No waitlist file found, starting empty", "path", r.path)
			return
		}
		r.logger.Error("Unable to read waitlist file, starting empty", "path", r.path, "error", err)
		return
	}

	var entries []*models.WaitlistEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", r.path, time.Now().Unix())
		r.logger.Error("Waitlist file is not valid JSON, moving it aside", "path", r.path, "moved_to", aside, "error", err)
		if renameErr := os.Rename(r.path, aside); renameErr != nil {
			r.logger.Error("Unable to move corrupt waitlist file", "path", r.path, "error", renameErr)
		}
		return
	}

	for _, entry := range entries {
		if entry == nil {
			continue
		}
		entry.Email = NormalizeEmail(entry.Email)
		if entry.Email == "" {
			continue
		}
		if _, dup := r.byEmail[entry.Email]; dup {
			continue
		}
		r.insertLocked(entry)
	}

	r.logger.Info("Waitlist file loaded", "path", r.path, "entries", len(r.ordered))
}

func (r *FileRepository) Name() string {
	return BackendFile
}

func (r *FileRepository) Path() string {
	return r.path
}

// insertLocked assigns an in-memory sequence number used to break ties
// between equal timestamps.
func (r *FileRepository) insertLocked(entry *models.WaitlistEntry) {
	entry.ID = r.nextID
	r.nextID++
	r.byEmail[entry.Email] = entry
	r.ordered = append(r.ordered, entry)
}

func (r *FileRepository) Join(ctx context.Context, entry *models.WaitlistEntry) (*JoinResult, error) {
	if entry == nil {
		return nil, apperrors.NewInvalidRequestError("entry cannot be nil", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byEmail[entry.Email]; ok {
		return &JoinResult{
			Entry:    copyEntry(existing),
			Created:  false,
			Position: r.positionLocked(existing),
			Total:    int64(len(r.ordered)),
			Backend:  BackendFile,
		}, nil
	}

	stored := copyEntry(entry)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.insertLocked(stored)

	if err := r.flushLocked(); err != nil {
		r.logger.Error("Failed to persist waitlist file; signup kept in memory only", "path", r.path, "error", err)
	}

	return &JoinResult{
		Entry:    copyEntry(stored),
		Created:  true,
		Position: r.positionLocked(stored),
		Total:    int64(len(r.ordered)),
		Backend:  BackendFile,
	}, nil
}

func (r *FileRepository) FindByEmail(_ context.Context, email string) (*models.WaitlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byEmail[email]
	if !ok {
		return nil, apperrors.NewNotFoundError("waitlist entry not found", nil)
	}

	return copyEntry(entry), nil
}

func (r *FileRepository) Position(_ context.Context, email string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byEmail[email]
	if !ok {
		return 0, nil
	}

	return r.positionLocked(entry), nil
}

// positionLocked counts the other entries created earlier, plus those created
// at the same instant but inserted first.
func (r *FileRepository) positionLocked(target *models.WaitlistEntry) int64 {
	var ahead int64
	for _, e := range r.ordered {
		if e == target {
			continue
		}
		if e.CreatedAt.Before(target.CreatedAt) || (e.CreatedAt.Equal(target.CreatedAt) && e.ID < target.ID) {
			ahead++
		}
	}
	return ahead + 1
}

func (r *FileRepository) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return int64(len(r.ordered)), nil
}

func (r *FileRepository) CountSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, e := range r.ordered {
		if !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// List orders by position, which differs from file order only when an
// imported entry carries an older timestamp.
func (r *FileRepository) List(_ context.Context) ([]*models.WaitlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]*models.WaitlistEntry, len(r.ordered))
	for i, e := range r.ordered {
		entries[i] = copyEntry(e)
	}

	sortByQueueOrder(entries)

	return entries, nil
}

// Flush rewrites the file from memory.
func (r *FileRepository) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.flushLocked()
}

func (r *FileRepository) Close() error {
	if err := r.Flush(); err != nil {
		r.logger.Error("Failed to flush waitlist file on close", "path", r.path, "error", err)
		return apperrors.NewStorageError("unable to flush waitlist file", err)
	}
	return nil
}

func (r *FileRepository) flushLocked() error {
	entries := r.ordered
	if entries == nil {
		entries = []*models.WaitlistEntry{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode waitlist: %w", err)
	}

	return r.writeFile(r.path, data)
}

// CheckWritable verifies the data directory accepts new files.
func (r *FileRepository) CheckWritable() error {
	f, err := os.CreateTemp(filepath.Dir(r.path), ".waitlist-probe-*")
	if err != nil {
		return apperrors.NewStorageError("waitlist data directory is not writable", err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}

func copyEntry(e *models.WaitlistEntry) *models.WaitlistEntry {
	c := *e
	return &c
}
