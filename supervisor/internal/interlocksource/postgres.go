package interlocksource

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	_ "github.com/lib/pq"

	"github.com/snd-kmd/caenhv/supervisor/internal/structures"
)

// postgresSource reads the SND interlock table, grounded on
// interlockdb.py's InterlockManager: `SELECT value, time FROM values
// WHERE property='KMD_Interlock'`, mapping value>0 to engaged.
type postgresSource struct {
	db *sql.DB
}

func newPostgresSource(u *url.URL) (Source, error) {
	db, err := sql.Open("postgres", u.String())
	if err != nil {
		return nil, fmt.Errorf("interlocksource: postgres open failed: %w", err)
	}
	return &postgresSource{db: db}, nil
}

func (s *postgresSource) GetInterlock() structures.InterlockState {
	var value int
	var ts time.Time

	row := s.db.QueryRow("SELECT value, time FROM values WHERE property = 'KMD_Interlock'")
	if err := row.Scan(&value, &ts); err != nil {
		log.WithError(err).Warn("interlocksource: postgres query failed")
		return failSafe(err)
	}

	return structures.InterlockState{CurrentState: value > 0, Timestamp: ts.Unix()}
}

func (s *postgresSource) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}
