package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/snapstudio-crm/internal/locks"
	"github.com/wolfman30/snapstudio-crm/internal/store"
	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

var fixedNow = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

func newTestService(archiver Archiver) (*Service, *store.Memory) {
	m := store.NewMemory()
	svc := NewService(m, locks.NewLocal(), archiver, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, m
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	buf, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, buf)
	return &s3.PutObjectOutput{}, nil
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	c, err := svc.Register(ctx, studio.ClientFields{Name: "Ada", Email: "ada@example.com", Tags: []string{" vip ", ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, c.Tags)
	assert.Equal(t, fixedNow, c.CreatedAt)

	_, err = svc.Register(ctx, studio.ClientFields{Name: "Ada Again", Email: "ada@example.com"})
	require.Error(t, err)
	assert.True(t, studio.IsConflict(err))

	_, err = svc.Register(ctx, studio.ClientFields{Email: "not-an-email"})
	assert.True(t, studio.IsValidation(err))
}

func TestUpdateNeverTouchesMetrics(t *testing.T) {
	svc, m := newTestService(nil)
	ctx := context.Background()
	c := &studio.Client{Name: "Ada", Email: "ada@example.com", TotalAppointments: 2, TotalSpent: 200}
	require.NoError(t, m.SaveClient(ctx, c))

	name := "Ada L."
	got, err := svc.Update(ctx, c.ID, studio.ClientPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)
	assert.Equal(t, 2, got.TotalAppointments)
	assert.Equal(t, fixedNow, got.UpdatedAt)

	_, err = svc.Update(ctx, uuid.New(), studio.ClientPatch{Name: &name})
	assert.True(t, studio.IsNotFound(err))
}

func TestClientWritesWaitForClientLock(t *testing.T) {
	m := store.NewMemory()
	locker := locks.NewLocal()
	svc := NewService(m, locker, nil, nil)
	ctx := context.Background()
	c := &studio.Client{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, m.SaveClient(ctx, c))

	release, err := locker.Acquire(ctx, locks.ClientKey(c.ID.String()), 0)
	require.NoError(t, err)

	name := "Ada L."
	updated := make(chan error, 1)
	go func() {
		_, err := svc.Update(ctx, c.ID, studio.ClientPatch{Name: &name})
		updated <- err
	}()
	recomputed := make(chan error, 1)
	go func() {
		_, err := svc.Recompute(ctx, c.ID)
		recomputed <- err
	}()

	select {
	case <-updated:
		t.Fatal("update ran while the client lock was held")
	case <-recomputed:
		t.Fatal("recompute ran while the client lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	require.NoError(t, <-updated)
	require.NoError(t, <-recomputed)
	got, err := m.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)
}

func TestAddNoteValidatesAndDefaults(t *testing.T) {
	svc, m := newTestService(nil)
	ctx := context.Background()
	c := &studio.Client{Name: "Ada"}
	require.NoError(t, m.SaveClient(ctx, c))

	_, err := svc.AddNote(ctx, c.ID, NoteInput{Content: "  "})
	assert.True(t, studio.IsValidation(err))

	note, err := svc.AddNote(ctx, c.ID, NoteInput{Content: "prefers mornings"})
	require.NoError(t, err)
	assert.Equal(t, "general", note.NoteType)

	notes, err := svc.Notes(ctx, c.ID, false)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastContact)
	assert.Equal(t, fixedNow, *got.LastContact)

	_, err = svc.Notes(ctx, uuid.New(), true)
	assert.True(t, studio.IsNotFound(err))
}

func TestArchiveUploadsExport(t *testing.T) {
	fake := &fakeS3{}
	svc, m := newTestService(NewS3Archiver(fake, "studio-exports"))
	ctx := context.Background()
	c := &studio.Client{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, m.SaveClient(ctx, c))
	clientID := c.ID
	require.NoError(t, m.SaveAppointment(ctx, &studio.Appointment{
		ClientID:    &clientID,
		SessionType: "portrait",
		StartTime:   fixedNow.Add(48 * time.Hour),
		EndTime:     fixedNow.Add(49 * time.Hour),
		Status:      studio.StatusConfirmed,
	}))

	key, err := svc.Archive(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "exports/"+c.ID.String()+"/20250601T123000Z.json", key)
	require.Len(t, fake.inputs, 1)
	assert.Equal(t, "studio-exports", *fake.inputs[0].Bucket)
	assert.Equal(t, key, *fake.inputs[0].Key)

	var exp Export
	require.NoError(t, json.Unmarshal(fake.bodies[0], &exp))
	assert.Equal(t, c.ID, exp.Client.ID)
	assert.Len(t, exp.Appointments, 1)
	assert.Empty(t, exp.Notes)
}

func TestArchiveErrors(t *testing.T) {
	svc, _ := newTestService(nil)
	_, err := svc.Archive(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrArchiveDisabled)

	failing, m2 := newTestService(NewS3Archiver(&fakeS3{err: errors.New("access denied")}, "b"))
	c := &studio.Client{Name: "Ada"}
	require.NoError(t, m2.SaveClient(context.Background(), c))
	_, err = failing.Archive(context.Background(), c.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestServiceRecompute(t *testing.T) {
	svc, m := newTestService(nil)
	ctx := context.Background()
	c := &studio.Client{Name: "Ada", TotalAppointments: 7, TotalSpent: 1}
	require.NoError(t, m.SaveClient(ctx, c))
	clientID := c.ID
	for _, amt := range []float64{100, 200} {
		require.NoError(t, m.SaveAppointment(ctx, &studio.Appointment{
			ClientID: &clientID, TotalAmount: amt, SessionType: "portrait",
			StartTime: fixedNow, EndTime: fixedNow.Add(time.Hour), CreatedAt: fixedNow,
		}))
	}

	got, err := svc.Recompute(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalAppointments)
	assert.Equal(t, 300.0, got.TotalSpent)
	assert.Equal(t, 150.0, got.AverageSessionValue)
}

func TestDeleteReportsMissing(t *testing.T) {
	svc, m := newTestService(nil)
	ctx := context.Background()
	c := &studio.Client{Name: "Ada"}
	require.NoError(t, m.SaveClient(ctx, c))

	deleted, err := svc.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = svc.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}
