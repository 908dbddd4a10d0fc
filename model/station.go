package model

import (
	"sort"
	"strings"
	"sync"
)

// Station is a playable internet-radio stream. The stream URL is the
// unique key; everything else is display metadata.
type Station struct {
	URL             string `json:"url"`
	Name            string `json:"name"`
	Language        string `json:"language,omitempty"`
	IsFavorite      bool   `json:"isFavorite"`
	IsFeatured      bool   `json:"isFeatured"`
	PlayTimeSeconds int64  `json:"playTimeSeconds"`
}

// Library is the ordered set of known stations. It is safe for
// concurrent use; the playback controller reads it to resolve
// next/previous when no playlist is active.
type Library struct {
	mu       sync.RWMutex
	stations []Station
	index    map[string]int // URL -> position in stations
}

// NewLibrary builds a library from the given stations. Duplicate URLs
// keep the first occurrence.
func NewLibrary(stations []Station) *Library {
	l := &Library{index: make(map[string]int)}
	for _, s := range stations {
		if s.URL == "" {
			continue
		}
		if _, ok := l.index[s.URL]; ok {
			continue
		}
		l.index[s.URL] = len(l.stations)
		l.stations = append(l.stations, s)
	}
	return l
}

// Stations returns a copy of the ordered station list.
func (l *Library) Stations() []Station {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Station, len(l.stations))
	copy(out, l.stations)
	return out
}

// Len returns the number of stations.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.stations)
}

// Get looks up a station by URL.
func (l *Library) Get(url string) (Station, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[url]
	if !ok {
		return Station{}, false
	}
	return l.stations[i], true
}

// Contains reports whether the URL is in the library.
func (l *Library) Contains(url string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[url]
	return ok
}

// Add appends a station; it is a no-op if the URL already exists.
func (l *Library) Add(s Station) bool {
	if s.URL == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.index[s.URL]; ok {
		return false
	}
	l.index[s.URL] = len(l.stations)
	l.stations = append(l.stations, s)
	return true
}

// Remove deletes a station by URL and reports whether it was present.
func (l *Library) Remove(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[url]
	if !ok {
		return false
	}
	l.stations = append(l.stations[:i], l.stations[i+1:]...)
	delete(l.index, url)
	for j := i; j < len(l.stations); j++ {
		l.index[l.stations[j].URL] = j
	}
	return true
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (l *Library) ToggleFavorite(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[url]
	if !ok {
		return false
	}
	l.stations[i].IsFavorite = !l.stations[i].IsFavorite
	return l.stations[i].IsFavorite
}

// AddPlayTime accumulates listening seconds for the given station.
func (l *Library) AddPlayTime(url string, seconds int64) {
	if seconds <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.index[url]; ok {
		l.stations[i].PlayTimeSeconds += seconds
	}
}

// Favorites returns the favorite stations in library order.
func (l *Library) Favorites() []Station {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Station
	for _, s := range l.stations {
		if s.IsFavorite {
			out = append(out, s)
		}
	}
	return out
}

// MostPlayed returns up to n stations sorted by accumulated play time.
func (l *Library) MostPlayed(n int) []Station {
	all := l.Stations()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PlayTimeSeconds > all[j].PlayTimeSeconds
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Search returns stations whose name contains the query,
// case-insensitively, in library order.
func (l *Library) Search(query string) []Station {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return l.Stations()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Station
	for _, s := range l.stations {
		if strings.Contains(strings.ToLower(s.Name), q) {
			out = append(out, s)
		}
	}
	return out
}
