package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Brand data file names inside the data directory.
const (
	GuidelinesFile = "brand_guidelines.md"
	PastPostsFile  = "past_posts.json"
	CalendarFile   = "content_calendar.json"
)

// Post is one historical social post with its measured performance.
type Post struct {
	ID             string   `json:"id,omitempty"`
	Platform       string   `json:"platform"`
	Content        string   `json:"content"`
	Date           string   `json:"date"`
	EngagementRate float64  `json:"engagement_rate"`
	Impressions    int      `json:"impressions"`
	Performance    string   `json:"performance"`
	SuccessFactors []string `json:"success_factors,omitempty"`
}

// CalendarEntry is one planned slot in the content calendar.
type CalendarEntry struct {
	Day         string `json:"day"`
	Time        string `json:"time"`
	Platform    string `json:"platform"`
	Topic       string `json:"topic"`
	ContentType string `json:"content_type"`
}

// Calendar is the current content calendar.
type Calendar struct {
	WeekOf  string          `json:"week_of"`
	Theme   string          `json:"theme"`
	Entries []CalendarEntry `json:"calendar"`
}

// BrandData holds the brand guidelines, past posts and content calendar
// loaded from a data directory. Missing files are treated as empty.
type BrandData struct {
	dir    string
	logger *slog.Logger

	mu          sync.RWMutex
	guidelines  string
	hasGuide    bool
	posts       []Post
	hasPosts    bool
	calendarRaw string
	calendar    Calendar
	hasCalendar bool
}

// LoadBrandData reads the data files from dir.
func LoadBrandData(dir string, logger *slog.Logger) (*BrandData, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &BrandData{dir: dir, logger: logger.With("component", "tools.data")}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Dir returns the data directory.
func (d *BrandData) Dir() string { return d.dir }

// Reload re-reads every data file. On error the previous contents are kept.
func (d *BrandData) Reload() error {
	guide, hasGuide, err := readOptional(filepath.Join(d.dir, GuidelinesFile))
	if err != nil {
		return err
	}

	rawPosts, hasPosts, err := readOptional(filepath.Join(d.dir, PastPostsFile))
	if err != nil {
		return err
	}
	var posts []Post
	if hasPosts {
		if err := json.Unmarshal([]byte(rawPosts), &posts); err != nil {
			return fmt.Errorf("parse %s: %w", PastPostsFile, err)
		}
	}

	rawCal, hasCal, err := readOptional(filepath.Join(d.dir, CalendarFile))
	if err != nil {
		return err
	}
	var cal Calendar
	if hasCal {
		if err := json.Unmarshal([]byte(rawCal), &cal); err != nil {
			return fmt.Errorf("parse %s: %w", CalendarFile, err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.guidelines, d.hasGuide = guide, hasGuide
	d.posts, d.hasPosts = posts, hasPosts
	d.calendarRaw, d.calendar, d.hasCalendar = rawCal, cal, hasCal
	return nil
}

func readOptional(path string) (string, bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return string(b), true, nil
}

// Guidelines returns the brand guidelines markdown.
func (d *BrandData) Guidelines() (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.guidelines, d.hasGuide
}

// Posts returns a copy of the past posts.
func (d *BrandData) Posts() ([]Post, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Post, len(d.posts))
	copy(out, d.posts)
	return out, d.hasPosts
}

// Calendar returns the parsed calendar and its raw JSON text.
func (d *BrandData) Calendar() (Calendar, string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cal := d.calendar
	cal.Entries = append([]CalendarEntry(nil), d.calendar.Entries...)
	return cal, d.calendarRaw, d.hasCalendar
}

// Watch reloads the data whenever one of the data files changes. It blocks
// until ctx is done.
func (d *BrandData) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.dir); err != nil {
		return fmt.Errorf("watch %s: %w", d.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isDataFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := d.Reload(); err != nil {
				d.logger.Warn("reload brand data failed", "file", filepath.Base(event.Name), "error", err)
				continue
			}
			d.logger.Info("brand data reloaded", "file", filepath.Base(event.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("watcher error", "error", err)
		}
	}
}

func isDataFile(path string) bool {
	switch filepath.Base(path) {
	case GuidelinesFile, PastPostsFile, CalendarFile:
		return true
	}
	return false
}
