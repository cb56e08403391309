// Package profiles loads the episode and speaker profile catalog from a YAML
// file and serves profile lookups by name.
package profiles

import (
	"errors"
	"fmt"
	"os"

	"github.com/castline/castline/pkg/models"
	"gopkg.in/yaml.v3"
)

var (
	ErrEpisodeProfileNotFound = errors.New("episode profile not found")
	ErrSpeakerProfileNotFound = errors.New("speaker profile not found")
)

type catalog struct {
	EpisodeProfiles []models.EpisodeProfile `yaml:"episode_profiles"`
	SpeakerProfiles []models.SpeakerProfile `yaml:"speaker_profiles"`
}

// Store holds the loaded profile catalog. Profiles are read once at startup;
// lookups return copies so callers cannot mutate the catalog.
type Store struct {
	episodes map[string]models.EpisodeProfile
	speakers map[string]models.SpeakerProfile
}

// Load reads the catalog from path and validates the cross-references: every
// episode profile must name a speaker profile that exists in the same file.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse builds a store from raw YAML catalog data.
func Parse(data []byte) (*Store, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	store := &Store{
		episodes: make(map[string]models.EpisodeProfile, len(c.EpisodeProfiles)),
		speakers: make(map[string]models.SpeakerProfile, len(c.SpeakerProfiles)),
	}

	for _, speaker := range c.SpeakerProfiles {
		if speaker.Name == "" {
			return nil, errors.New("speaker profile with empty name")
		}

		store.speakers[speaker.Name] = speaker
	}

	for _, episode := range c.EpisodeProfiles {
		if episode.Name == "" {
			return nil, errors.New("episode profile with empty name")
		}

		if episode.ExecutionMode == "" {
			episode.ExecutionMode = models.ExecutionModeParallel
		}

		if _, ok := store.speakers[episode.SpeakerProfile]; !ok {
			return nil, fmt.Errorf("episode profile %q references unknown speaker profile %q",
				episode.Name, episode.SpeakerProfile)
		}

		store.episodes[episode.Name] = episode
	}

	return store, nil
}

func (s *Store) EpisodeProfile(name string) (*models.EpisodeProfile, error) {
	episode, ok := s.episodes[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrEpisodeProfileNotFound)
	}

	return &episode, nil
}

func (s *Store) SpeakerProfile(name string) (*models.SpeakerProfile, error) {
	speaker, ok := s.speakers[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrSpeakerProfileNotFound)
	}

	out := speaker
	out.Speakers = append([]models.Speaker(nil), speaker.Speakers...)

	return &out, nil
}

// EpisodeProfileNames lists the loaded episode profiles.
func (s *Store) EpisodeProfileNames() []string {
	names := make([]string, 0, len(s.episodes))
	for name := range s.episodes {
		names = append(names, name)
	}

	return names
}
