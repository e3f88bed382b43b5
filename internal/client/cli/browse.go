package cli

import (
	"context"
	"errors"
	"strconv"

	"github.com/dmitrijs2005/sportmatch/internal/client/matching"
)

var errNotBrowsing = errors.New("not browsing; use 'browse <sportID>' first")

func (a *App) Sports(ctx context.Context) error {
	sports, err := a.api.Sports(ctx)
	if err != nil {
		a.printf("Could not load sports: %s\n", describe(err))
		return err
	}
	for _, s := range sports {
		kind := "individual"
		if s.IsTeamSport {
			kind = "team"
		}
		a.printf("%4d  %-20s %s\n", s.ID, s.Name, kind)
	}
	return nil
}

// Browse loads the first page of candidates for a sport:
//
//	browse <sportID> [latitude longitude]
func (a *App) Browse(ctx context.Context, args []string) error {
	u, ok := a.currentUser()
	if !ok {
		a.println("Log in first.")
		return nil
	}
	if len(args) != 1 && len(args) != 3 {
		a.println("Usage: browse <sportID> [latitude longitude]")
		return nil
	}
	sportID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		a.println("Usage: browse <sportID> [latitude longitude]")
		return nil
	}

	var filters matching.Filters
	if len(args) == 3 {
		lat, errLat := strconv.ParseFloat(args[1], 64)
		lon, errLon := strconv.ParseFloat(args[2], 64)
		if errLat != nil || errLon != nil {
			a.println("Latitude and longitude must be numbers.")
			return nil
		}
		filters.Latitude, filters.Longitude = &lat, &lon
	}

	key := matching.Key{UserID: u.ID, SportID: sportID}
	a.cache.Focus(key)
	a.mu.Lock()
	a.key, a.browsing = key, true
	a.mu.Unlock()

	snap, err := a.cache.Load(ctx, key, filters)
	if err != nil {
		a.printf("Could not load candidates: %s\n", describe(err))
		return err
	}
	a.printCandidates(snap)
	return nil
}

// More appends the next page to the current list.
func (a *App) More(ctx context.Context) error {
	key, ok := a.browseKey()
	if !ok {
		a.println(errNotBrowsing.Error())
		return nil
	}
	snap, err := a.cache.LoadMore(ctx, key)
	if err != nil {
		a.reportCacheError(err)
		return err
	}
	a.printCandidates(snap)
	return nil
}

func (a *App) Like(ctx context.Context, args []string) error {
	return a.decide(ctx, args, matching.Like)
}

func (a *App) Pass(ctx context.Context, args []string) error {
	return a.decide(ctx, args, matching.Dislike)
}

func (a *App) decide(ctx context.Context, args []string, kind matching.Kind) error {
	key, ok := a.browseKey()
	if !ok {
		a.println(errNotBrowsing.Error())
		return nil
	}
	if len(args) != 1 {
		a.printf("Usage: %s <candidateID>\n", verb(kind))
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		a.printf("Usage: %s <candidateID>\n", verb(kind))
		return nil
	}

	outcome, err := a.cache.RecordDecision(ctx, key, id, kind)
	if err != nil {
		a.reportCacheError(err)
		return err
	}
	switch outcome {
	case matching.OutcomeMatchCreated:
		// the MatchFound event prints the announcement
	case matching.OutcomeTeamMatchPending:
		a.println("Liked. Waiting for enough players to form a team match.")
	case matching.OutcomeLikeStored:
		a.println("Liked.")
	case matching.OutcomeDislikeStored:
		a.println("Passed.")
	}
	return nil
}

func (a *App) Matches(ctx context.Context) error {
	matches, err := a.api.MyMatches(ctx)
	if err != nil {
		a.printf("Could not load matches: %s\n", describe(err))
		return err
	}
	if len(matches) == 0 {
		a.println("No matches yet.")
		return nil
	}
	for _, m := range matches {
		names := ""
		for i, p := range m.Participants {
			if i > 0 {
				names += ", "
			}
			names += p.User.DisplayName()
		}
		a.printf("%4d  %-15s %-10s %s\n", m.ID, m.Sport.Name, m.Status, names)
	}
	return nil
}

func (a *App) browseKey() (matching.Key, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.key, a.browsing
}

func (a *App) reportCacheError(err error) {
	switch {
	case errors.Is(err, matching.ErrStale):
		a.println("The list is out of date after a failed action. Run 'browse' again.")
	case errors.Is(err, matching.ErrAlreadyProcessing):
		a.println("Already working on that candidate.")
	case errors.Is(err, matching.ErrNotLoaded), errors.Is(err, matching.ErrSuperseded):
		a.println(errNotBrowsing.Error())
	default:
		a.printf("Failed: %s\n", describe(err))
	}
}

func (a *App) printCandidates(s matching.Snapshot) {
	if len(s.Candidates) == 0 {
		a.println("No candidates nearby.")
		return
	}
	for _, u := range s.Candidates {
		a.printf("%6d  %s\n", u.ID, u.DisplayName())
	}
	if s.HasMore {
		a.println("(type 'more' for the next page)")
	}
}

func verb(k matching.Kind) string {
	if k == matching.Like {
		return "like"
	}
	return "pass"
}

