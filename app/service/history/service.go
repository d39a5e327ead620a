package history

import (
	"context"
	"database/sql"
	"errors"
	"healthmate/app/client/sqlite"
	"strings"
	"time"

	"github.com/samber/do"
	"github.com/samber/oops"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidDate    = errors.New("date must be formatted as YYYY-MM-DD")
	ErrMissingSession = errors.New("session id is required")
)

// Service keeps the user-facing chat transcript. It is independent of the
// engine's message log, which is compacted.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	return NewWithDB(do.MustInvoke[*sqlite.Client](di).DB()), nil
}

func NewWithDB(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func (s *Service) Record(ctx context.Context, entry Entry) error {
	now := s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_history (session_id, patient_id, date, user_message, bot_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.SessionID, entry.PatientID, now.Format(dateLayout), entry.UserMessage, entry.BotResponse,
		now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return oops.In("history").With("session", entry.SessionID).Wrapf(err, "failed to record exchange")
	}

	return nil
}

// Dates lists the days that have at least one exchange, oldest first.
func (s *Service) Dates(ctx context.Context, sessionID string) ([]string, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT date FROM conversation_history
		WHERE session_id = ?
		ORDER BY date
	`, sessionID)
	if err != nil {
		return nil, oops.In("history").Wrapf(err, "failed to list dates")
	}
	defer rows.Close()

	dates := make([]string, 0)
	for rows.Next() {
		var date string
		if err = rows.Scan(&date); err != nil {
			return nil, oops.In("history").Wrapf(err, "failed to scan date")
		}
		dates = append(dates, date)
	}

	return dates, rows.Err()
}

// ByDate returns the transcript of one day as alternating user/bot lines.
func (s *Service) ByDate(ctx context.Context, sessionID, date string) ([]Line, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, oops.In("history").Code("invalid_date").With("date", date).Wrapf(errors.Join(ErrInvalidDate, err), "invalid date")
	}

	exchanges, err := s.query(ctx, `
		SELECT date, user_message, bot_response FROM conversation_history
		WHERE date = ? AND session_id = ?
		ORDER BY id
	`, date, sessionID)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(exchanges)*2)
	for _, ex := range exchanges {
		lines = append(lines,
			Line{Sender: SenderUser, Message: ex.user},
			Line{Sender: SenderBot, Message: ex.bot},
		)
	}

	return lines, nil
}

// Search finds transcript lines of one session containing the keyword.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]Match, error) {
	if q.SessionID == "" {
		return nil, ErrMissingSession
	}

	exchanges, err := s.query(ctx, `
		SELECT date, user_message, bot_response FROM conversation_history
		WHERE session_id = ?
		ORDER BY id
	`, q.SessionID)
	if err != nil {
		return nil, err
	}

	keyword := q.Keyword
	if !q.CaseSensitive {
		keyword = strings.ToLower(keyword)
	}

	matches := make([]Match, 0)
	for _, ex := range exchanges {
		for _, line := range []Line{{SenderUser, ex.user}, {SenderBot, ex.bot}} {
			if q.OnlyUser && line.Sender != SenderUser {
				continue
			}
			if q.OnlyBot && line.Sender != SenderBot {
				continue
			}

			text := line.Message
			if !q.CaseSensitive {
				text = strings.ToLower(text)
			}

			if strings.Contains(text, keyword) {
				matches = append(matches, Match{
					Date:    ex.date,
					Sender:  line.Sender,
					Message: line.Message,
					Keyword: keyword,
				})
			}
		}
	}

	return matches, nil
}

type exchange struct {
	date string
	user string
	bot  string
}

func (s *Service) query(ctx context.Context, query string, args ...any) ([]exchange, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, oops.In("history").Wrapf(err, "failed to query history")
	}
	defer rows.Close()

	var result []exchange
	for rows.Next() {
		var ex exchange
		if err = rows.Scan(&ex.date, &ex.user, &ex.bot); err != nil {
			return nil, oops.In("history").Wrapf(err, "failed to scan history")
		}
		result = append(result, ex)
	}

	return result, rows.Err()
}
