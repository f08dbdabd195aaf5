// Package contest scrapes the upcoming-contests listing page and
// auto-registers each contest as a one-shot reminder event.
package contest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	appLog "remindbot/internal/log"
	"remindbot/internal/metrics"
	"remindbot/internal/model"
)

// startAtLayout is the listing page's date format, always with an
// explicit +0900 offset.
const startAtLayout = "2006-01-02 15:04:05-0700"

// EventStore is the slice of the store the ingester needs.
type EventStore interface {
	ExistsByTitle(ctx context.Context, title string) (bool, error)
	CreateEvent(ctx context.Context, ev model.Event, userIDs, roleIDs []string) (int64, error)
}

// Ingester fetches the contest page and inserts non-duplicate contests
// as once-policy events.
type Ingester struct {
	client *http.Client
	store  EventStore

	url string
	// channelID is the notify channel for auto-registered events.
	channelID string
	// mentionRoleID, if non-empty, is attached as the role mention of
	// every inserted contest event.
	mentionRoleID string
}

// New builds an Ingester. A nil client gets a default with a bounded
// timeout so a hung page fetch cannot stall the hourly job.
func New(client *http.Client, store EventStore, url, channelID, mentionRoleID string) *Ingester {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Ingester{
		client:        client,
		store:         store,
		url:           url,
		channelID:     channelID,
		mentionRoleID: mentionRoleID,
	}
}

// Title renders the stored event title for a contest as a markdown link.
// Dedup matches on this exact string.
func Title(c model.Contest) string {
	return fmt.Sprintf("[%s](%s)", c.Name, c.URL)
}

// Run executes one ingestion pass. A fetch or page-level parse failure
// skips the whole run (the next scheduled run retries naturally);
// individual malformed rows are skipped without aborting the page.
func (i *Ingester) Run(ctx context.Context, now time.Time) error {
	contests, err := i.fetch(ctx)
	if err != nil {
		metrics.ContestFetchErrors.Inc()
		return fmt.Errorf("contest fetch: %w", err)
	}

	inserted := 0
	for _, c := range contests {
		if !c.StartAt.After(now) {
			continue
		}
		ok, err := i.insertIfAbsent(ctx, c)
		if err != nil {
			// Storage trouble on one contest does not roll back the
			// rows already inserted in this pass.
			appLog.Error("contest insert failed", err, "contest_id", c.ID)
			continue
		}
		if ok {
			inserted++
		}
	}

	appLog.Info("contest ingestion completed", "found", len(contests), "inserted", inserted)
	return nil
}

func (i *Ingester) fetch(ctx context.Context) ([]model.Contest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(resp.Status)
	}

	return ParsePage(resp.Body, i.url)
}

// ParsePage extracts upcoming contests from the listing HTML. Rows are
// read positionally: column 1 holds the start time link, column 2 the
// contest link. A row that fails to parse is logged and skipped.
func ParsePage(r io.Reader, baseURL string) ([]model.Contest, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var contests []model.Contest
	doc.Find("#contest-table-upcoming tbody tr").Each(func(_ int, row *goquery.Selection) {
		c, perr := parseRow(row, baseURL)
		if perr != nil {
			appLog.Error("contest row parse failed", perr)
			return
		}
		contests = append(contests, c)
	})
	return contests, nil
}

func parseRow(row *goquery.Selection, baseURL string) (model.Contest, error) {
	cells := row.Find("td")
	if cells.Length() < 2 {
		return model.Contest{}, errors.New("row has too few cells")
	}

	dateText := strings.TrimSpace(cells.Eq(0).Find("a").Text())
	startAt, err := time.Parse(startAtLayout, dateText)
	if err != nil {
		return model.Contest{}, fmt.Errorf("start time %q: %w", dateText, err)
	}

	link := cells.Eq(1).Find("a")
	href, ok := link.Attr("href")
	if !ok {
		return model.Contest{}, errors.New("contest link has no href")
	}
	id := strings.TrimPrefix(strings.TrimSuffix(href, "/"), "/contests/")
	if id == "" {
		return model.Contest{}, fmt.Errorf("contest link %q has no id", href)
	}

	name := strings.TrimSpace(link.Text())
	if name == "" {
		return model.Contest{}, errors.New("contest link has no name")
	}

	return model.Contest{
		ID:      id,
		Name:    name,
		URL:     strings.TrimSuffix(baseURL, "/") + "/" + id,
		StartAt: startAt,
	}, nil
}

// insertIfAbsent inserts the contest as a once-policy event unless one
// with the same rendered title already exists. Reports whether a row was
// inserted. Titles are free text, so the check runs here rather than as
// a storage uniqueness constraint.
func (i *Ingester) insertIfAbsent(ctx context.Context, c model.Contest) (bool, error) {
	title := Title(c)

	exists, err := i.store.ExistsByTitle(ctx, title)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	var roleIDs []string
	if i.mentionRoleID != "" {
		roleIDs = []string{i.mentionRoleID}
	}

	_, err = i.store.CreateEvent(ctx, model.Event{
		Title:     title,
		Date:      c.StartAt,
		Policy:    model.NotifyOnce,
		ChannelID: i.channelID,
	}, nil, roleIDs)
	if err != nil {
		return false, err
	}

	metrics.ContestsIngested.Inc()
	appLog.Info("contest event registered", "contest_id", c.ID, "title", title)
	return true, nil
}
