package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/Dosada05/pickleball-platform/repositories"
)

func activeEventInput(creatorID int) CreateEventInput {
	return CreateEventInput{
		Title:     "Evening doubles",
		StartTime: time.Now().Add(2 * time.Hour),
		EndTime:   time.Now().Add(4 * time.Hour),
		CreatorID: creatorID,
	}
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture()
	creator := f.addUser("creator")
	ctx := context.Background()

	t.Run("missing title", func(t *testing.T) {
		input := activeEventInput(creator.ID)
		input.Title = ""
		if _, err := f.events.CreateEvent(ctx, input); !errors.Is(err, ErrEventTitleRequired) {
			t.Fatalf("expected ErrEventTitleRequired, got %v", err)
		}
	})

	t.Run("start after end", func(t *testing.T) {
		input := activeEventInput(creator.ID)
		input.StartTime, input.EndTime = input.EndTime, input.StartTime
		if _, err := f.events.CreateEvent(ctx, input); !errors.Is(err, ErrEventInvalidTimeRange) {
			t.Fatalf("expected ErrEventInvalidTimeRange, got %v", err)
		}
	})

	t.Run("start in the past", func(t *testing.T) {
		input := activeEventInput(creator.ID)
		input.StartTime = time.Now().Add(-time.Hour)
		if _, err := f.events.CreateEvent(ctx, input); !errors.Is(err, ErrEventStartInPast) {
			t.Fatalf("expected ErrEventStartInPast, got %v", err)
		}
	})

	t.Run("non-positive capacity", func(t *testing.T) {
		input := activeEventInput(creator.ID)
		input.MaxParticipants = intPtr(0)
		if _, err := f.events.CreateEvent(ctx, input); !errors.Is(err, ErrEventInvalidCapacity) {
			t.Fatalf("expected ErrEventInvalidCapacity, got %v", err)
		}
	})

	t.Run("valid event is active", func(t *testing.T) {
		event, err := f.events.CreateEvent(ctx, activeEventInput(creator.ID))
		if err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
		if event.Status != models.EventActive {
			t.Fatalf("expected active status, got %s", event.Status)
		}
		if event.IsTeamEvent() {
			t.Fatal("personal event must not carry a team")
		}
	})
}

func TestReserveConcurrentNeverExceedsCapacity(t *testing.T) {
	f := newFixture()
	creator := f.addUser("host")
	ctx := context.Background()

	const capacity = 4
	const players = 20

	input := activeEventInput(creator.ID)
	input.MaxParticipants = intPtr(capacity)
	event, err := f.events.CreateEvent(ctx, input)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	userIDs := make([]int, players)
	for i := range userIDs {
		userIDs[i] = f.addUser("player" + string(rune('a'+i))).ID
	}

	var wg sync.WaitGroup
	results := make(chan error, players)
	for _, userID := range userIDs {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			_, err := f.events.Reserve(ctx, event.ID, userID)
			results <- err
		}(userID)
	}
	wg.Wait()
	close(results)

	var granted, full int
	for err := range results {
		switch {
		case err == nil:
			granted++
		case errors.Is(err, ErrEventFull):
			full++
		default:
			t.Fatalf("unexpected reserve error: %v", err)
		}
	}

	if granted != capacity {
		t.Fatalf("expected exactly %d granted reservations, got %d", capacity, granted)
	}
	if full != players-capacity {
		t.Fatalf("expected %d rejections, got %d", players-capacity, full)
	}

	count, err := (reservationRepo{f.store}).CountByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("CountByEvent: %v", err)
	}
	if count != capacity {
		t.Fatalf("store holds %d reservations, capacity is %d", count, capacity)
	}
}

func TestReserveRules(t *testing.T) {
	f := newFixture()
	creator := f.addUser("host")
	player := f.addUser("player")
	ctx := context.Background()

	event, err := f.events.CreateEvent(ctx, activeEventInput(creator.ID))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	t.Run("duplicate reservation is rejected", func(t *testing.T) {
		if _, err := f.events.Reserve(ctx, event.ID, player.ID); err != nil {
			t.Fatalf("first reserve: %v", err)
		}
		if _, err := f.events.Reserve(ctx, event.ID, player.ID); !errors.Is(err, ErrAlreadyReserved) {
			t.Fatalf("expected ErrAlreadyReserved, got %v", err)
		}
	})

	t.Run("creator cannot reserve own personal event", func(t *testing.T) {
		if _, err := f.events.Reserve(ctx, event.ID, creator.ID); !errors.Is(err, ErrForbiddenOperation) {
			t.Fatalf("expected ErrForbiddenOperation, got %v", err)
		}
	})

	t.Run("creator is notified about the join", func(t *testing.T) {
		notifications := f.notificationsFor(creator.ID)
		if len(notifications) != 1 || notifications[0].Type != models.NotifEventJoined {
			t.Fatalf("expected one event_joined notification, got %+v", notifications)
		}
	})

	t.Run("closed event rejects reservations", func(t *testing.T) {
		if _, err := f.events.CloseEvent(ctx, event.ID, creator.ID); err != nil {
			t.Fatalf("CloseEvent: %v", err)
		}
		stranger := f.addUser("stranger")
		if _, err := f.events.Reserve(ctx, event.ID, stranger.ID); !errors.Is(err, ErrEventClosed) {
			t.Fatalf("expected ErrEventClosed, got %v", err)
		}
	})
}

func TestPastEventIsImmutable(t *testing.T) {
	f := newFixture()
	creator := f.addUser("host")
	player := f.addUser("player")
	ctx := context.Background()

	event, err := f.events.CreateEvent(ctx, activeEventInput(creator.ID))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	reservation, err := f.events.Reserve(ctx, event.ID, player.ID)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	// Откатываем начало в прошлое напрямую в складе.
	f.store.mu.Lock()
	f.store.events[event.ID].StartTime = time.Now().Add(-time.Hour)
	f.store.mu.Unlock()

	t.Run("update is rejected", func(t *testing.T) {
		_, err := f.events.UpdateEvent(ctx, event.ID, UpdateEventInput{Title: strPtr("new title")}, creator.ID)
		if !errors.Is(err, ErrEventLocked) {
			t.Fatalf("expected ErrEventLocked, got %v", err)
		}
	})

	t.Run("reservation cancel is rejected", func(t *testing.T) {
		err := f.events.CancelReservation(ctx, reservation.ID, player.ID)
		if !errors.Is(err, ErrEventLocked) {
			t.Fatalf("expected ErrEventLocked, got %v", err)
		}
	})

	t.Run("new reservation is rejected", func(t *testing.T) {
		stranger := f.addUser("late")
		if _, err := f.events.Reserve(ctx, event.ID, stranger.ID); !errors.Is(err, ErrEventLocked) {
			t.Fatalf("expected ErrEventLocked, got %v", err)
		}
	})
}

func TestUpdateEventNotifiesHolders(t *testing.T) {
	f := newFixture()
	creator := f.addUser("host")
	first := f.addUser("first")
	second := f.addUser("second")
	ctx := context.Background()

	event, err := f.events.CreateEvent(ctx, activeEventInput(creator.ID))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	for _, id := range []int{first.ID, second.ID} {
		if _, err := f.events.Reserve(ctx, event.ID, id); err != nil {
			t.Fatalf("Reserve: %v", err)
		}
	}

	newStart := time.Now().Add(6 * time.Hour)
	newEnd := time.Now().Add(8 * time.Hour)
	if _, err := f.events.UpdateEvent(ctx, event.ID, UpdateEventInput{
		StartTime: &newStart,
		EndTime:   &newEnd,
	}, creator.ID); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}

	for _, holder := range []*models.User{first, second} {
		var updated int
		for _, n := range f.notificationsFor(holder.ID) {
			if n.Type == models.NotifEventUpdated {
				updated++
			}
		}
		if updated != 1 {
			t.Fatalf("holder %s: expected one event_updated notification, got %d", holder.Nickname, updated)
		}
	}

	t.Run("description change alone does not notify", func(t *testing.T) {
		if _, err := f.events.UpdateEvent(ctx, event.ID, UpdateEventInput{
			Description: strPtr("bring water"),
		}, creator.ID); err != nil {
			t.Fatalf("UpdateEvent: %v", err)
		}
		var updated int
		for _, n := range f.notificationsFor(first.ID) {
			if n.Type == models.NotifEventUpdated {
				updated++
			}
		}
		if updated != 1 {
			t.Fatalf("expected still one event_updated notification, got %d", updated)
		}
	})
}

func TestDeleteEventNotifiesHoldersAndCascades(t *testing.T) {
	f := newFixture()
	creator := f.addUser("host")
	player := f.addUser("player")
	ctx := context.Background()

	event, err := f.events.CreateEvent(ctx, activeEventInput(creator.ID))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if _, err := f.events.Reserve(ctx, event.ID, player.ID); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	stranger := f.addUser("stranger")
	if err := f.events.DeleteEvent(ctx, event.ID, stranger.ID); !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("expected ErrForbiddenOperation for stranger, got %v", err)
	}

	if err := f.events.DeleteEvent(ctx, event.ID, creator.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}

	if _, err := f.events.GetEventByID(ctx, event.ID, creator.ID); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound after delete, got %v", err)
	}
	count, _ := (reservationRepo{f.store}).CountByEvent(ctx, event.ID)
	if count != 0 {
		t.Fatalf("reservations must cascade, %d left", count)
	}

	var cancelled int
	for _, n := range f.notificationsFor(player.ID) {
		if n.Type == models.NotifEventCancelledByCreator {
			cancelled++
		}
	}
	if cancelled != 1 {
		t.Fatalf("expected one event_cancelled_by_creator notification, got %d", cancelled)
	}
}

func TestTeamEventVisibilityAndCreation(t *testing.T) {
	f := newFixture()
	owner := f.addUser("owner")
	member := f.addUser("member")
	outsider := f.addUser("outsider")
	ctx := context.Background()

	team := f.addTeam("Smash Club", models.TeamPublic, owner.ID)
	f.addMember(team.ID, member.ID, models.RoleMember)

	t.Run("plain member cannot create team events", func(t *testing.T) {
		_, err := f.events.CreateTeamEvent(ctx, team.ID, activeEventInput(member.ID), member.ID)
		if !errors.Is(err, ErrManagerActionForbidden) {
			t.Fatalf("expected ErrManagerActionForbidden, got %v", err)
		}
	})

	input := activeEventInput(owner.ID)
	input.Visibility = models.EventPrivate
	event, err := f.events.CreateTeamEvent(ctx, team.ID, input, owner.ID)
	if err != nil {
		t.Fatalf("CreateTeamEvent: %v", err)
	}

	t.Run("team members are notified", func(t *testing.T) {
		var created int
		for _, n := range f.notificationsFor(member.ID) {
			if n.Type == models.NotifTeamEventCreated {
				created++
			}
		}
		if created != 1 {
			t.Fatalf("expected one team_event_created notification, got %d", created)
		}
	})

	t.Run("private team event hidden from outsiders", func(t *testing.T) {
		if _, err := f.events.GetEventByID(ctx, event.ID, outsider.ID); !errors.Is(err, ErrEventNotFound) {
			t.Fatalf("expected ErrEventNotFound for outsider, got %v", err)
		}
		if _, err := f.events.GetEventByID(ctx, event.ID, member.ID); err != nil {
			t.Fatalf("member must see the event: %v", err)
		}

		events, err := f.events.ListEvents(ctx, repositories.EventFilter{}, outsider.ID)
		if err != nil {
			t.Fatalf("ListEvents: %v", err)
		}
		for _, e := range events {
			if e.ID == event.ID {
				t.Fatal("private team event leaked into outsider listing")
			}
		}
	})

	t.Run("members can reserve symmetric slots", func(t *testing.T) {
		if _, err := f.events.Reserve(ctx, event.ID, member.ID); err != nil {
			t.Fatalf("member reserve: %v", err)
		}
		// Создатель командного события тоже играет и занимает слот.
		if _, err := f.events.Reserve(ctx, event.ID, owner.ID); err != nil {
			t.Fatalf("creator reserve on team event: %v", err)
		}
	})
}

func TestAutoCompleteEvents(t *testing.T) {
	f := newFixture()
	creator := f.addUser("host")
	ctx := context.Background()

	event, err := f.events.CreateEvent(ctx, activeEventInput(creator.ID))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	f.store.mu.Lock()
	f.store.events[event.ID].EndTime = time.Now().Add(-time.Minute)
	f.store.mu.Unlock()

	if err := f.events.AutoCompleteEvents(ctx); err != nil {
		t.Fatalf("AutoCompleteEvents: %v", err)
	}

	got, err := f.events.GetEventByID(ctx, event.ID, creator.ID)
	if err != nil {
		t.Fatalf("GetEventByID: %v", err)
	}
	if got.Status != models.EventCompleted {
		t.Fatalf("expected completed status, got %s", got.Status)
	}
}

// Отмена освобождает слот: после EventFull повторная бронь проходит.
func TestCancelFreesCapacitySlot(t *testing.T) {
	f := newFixture()
	host := f.addUser("host")
	second := f.addUser("second")
	third := f.addUser("third")
	fourth := f.addUser("fourth")
	ctx := context.Background()

	input := activeEventInput(host.ID)
	input.MaxParticipants = intPtr(2)
	event, err := f.events.CreateEvent(ctx, input)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	reservation, err := f.events.Reserve(ctx, event.ID, second.ID)
	if err != nil {
		t.Fatalf("reserve 1/2: %v", err)
	}
	if _, err := f.events.Reserve(ctx, event.ID, third.ID); err != nil {
		t.Fatalf("reserve 2/2: %v", err)
	}
	if _, err := f.events.Reserve(ctx, event.ID, fourth.ID); !errors.Is(err, ErrEventFull) {
		t.Fatalf("expected ErrEventFull, got %v", err)
	}

	if err := f.events.CancelReservation(ctx, reservation.ID, second.ID); err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}
	if _, err := f.events.Reserve(ctx, event.ID, fourth.ID); err != nil {
		t.Fatalf("retry after cancel: %v", err)
	}
}

// Командное событие и рассылка участникам - одна транзакция: сбой
// отправки не оставляет событие в базе.
func TestCreateTeamEventRollsBackWhenNotifierFails(t *testing.T) {
	f := newFixture()
	owner := f.addUser("owner")
	member := f.addUser("member")
	ctx := context.Background()

	team := f.addTeam("Net Gains", models.TeamPublic, owner.ID)
	f.addMember(team.ID, member.ID, models.RoleMember)

	broken := NewEventService(f.store, eventRepo{f.store}, reservationRepo{f.store}, memberRepo{f.store}, userRepo{f.store}, teamRepo{f.store}, failingNotifier{}, f.uploader, nil)

	if _, err := broken.CreateTeamEvent(ctx, team.ID, activeEventInput(owner.ID), owner.ID); err == nil {
		t.Fatal("expected an error from the failing notifier")
	}

	f.store.mu.Lock()
	persisted := len(f.store.events)
	f.store.mu.Unlock()
	if persisted != 0 {
		t.Fatalf("no event may persist after a failed dispatch, got %d", persisted)
	}

	if _, err := f.events.CreateTeamEvent(ctx, team.ID, activeEventInput(owner.ID), owner.ID); err != nil {
		t.Fatalf("retry with a working notifier: %v", err)
	}
}
