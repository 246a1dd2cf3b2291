package registry

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/matchday/internal/domain/model"
)

type playerRecord struct {
	ID       uint32 `koanf:"id"`
	Name     string `koanf:"name"`
	Position string `koanf:"position"`
	Team     uint32 `koanf:"team"`
	Price    int64  `koanf:"price"`
}

type statsRecord struct {
	Period           uint64 `koanf:"period"`
	Player           uint32 `koanf:"player"`
	model.MatchStats `koanf:",squash"`
}

func readFile(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	return k, nil
}

// LoadPlayers reads a YAML file with a top-level "players" list into r.
//
//	players:
//	  - {id: 1, name: Alisson, position: GK, team: 1, price: 55}
func LoadPlayers(path string, r *Registry) (int, error) {
	k, err := readFile(path)
	if err != nil {
		return 0, err
	}
	var records []playerRecord
	if err := k.UnmarshalWithConf("players", &records, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	for i, rec := range records {
		pos, err := model.ParsePosition(rec.Position)
		if err != nil {
			return i, fmt.Errorf("%w: %s: entry %d: %w", ErrLoad, path, i, err)
		}
		p := model.Player{
			ID:       model.PlayerID(rec.ID),
			Name:     rec.Name,
			Position: pos,
			TeamID:   model.TeamID(rec.Team),
			Price:    rec.Price,
		}
		if err := r.Put(p); err != nil {
			return i, fmt.Errorf("%w: %s: entry %d: %w", ErrLoad, path, i, err)
		}
	}
	return len(records), nil
}

// LoadStats reads a YAML file with a top-level "stats" list into b.
//
//	stats:
//	  - {period: 1, player: 9, played: true, goals: 2}
func LoadStats(path string, b *StatsBook) (int, error) {
	k, err := readFile(path)
	if err != nil {
		return 0, err
	}
	var records []statsRecord
	if err := k.UnmarshalWithConf("stats", &records, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	for i, rec := range records {
		if rec.Period == 0 || rec.Player == 0 {
			return i, fmt.Errorf("%w: %s: entry %d: period and player are required", ErrLoad, path, i)
		}
		b.Put(rec.Period, model.PlayerID(rec.Player), rec.MatchStats)
	}
	return len(records), nil
}
