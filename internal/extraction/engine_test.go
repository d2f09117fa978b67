package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/granhackaria/eventharvest/internal/llm"
	"github.com/granhackaria/eventharvest/internal/logging"
	"github.com/granhackaria/eventharvest/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeImages struct {
	calls int
	err   error
}

func (f *fakeImages) Fetch(ctx context.Context, imageURL string) (*llm.Image, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return llm.NewImage("image/jpeg", []byte("poster")), nil
}

func newTestEngine(p llm.Provider, images ImageFetcher) *Engine {
	cfg := DefaultConfig()
	fixed := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	return NewEngine(p, images, cfg, logging.Discard(), WithClock(func() time.Time { return fixed }))
}

const completeReply = `{"title":"Noche de Jazz","description":"Cuarteto en directo","date_start":"2026-03-01",
	"time":"21:00","location":"Vegueta","ticket_price":"10€","category":"music",
	"title_en":"Jazz Night","title_es":"Noche de Jazz","source_language":"es"}`

func TestExtractFromTextRejectsShortTextWithoutModelCall(t *testing.T) {
	p := &llm.MockProvider{}
	e := newTestEngine(p, nil)

	event, err := e.ExtractFromText(context.Background(), "Hi there")
	require.NoError(t, err)
	assert.Nil(t, event)

	event, err = e.ExtractFromText(context.Background(), "   short    ")
	require.NoError(t, err)
	assert.Nil(t, event)

	p.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestExtractFromTextParsesReply(t *testing.T) {
	p := &llm.MockProvider{}
	p.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Operation == llm.OperationText &&
			req.Text == "Today's date is 2026-02-20.\n\nText:\nJazz este sábado en Vegueta"
	})).Return("```json\n"+completeReply+"\n```", nil)

	e := newTestEngine(p, nil)

	event, err := e.ExtractFromText(context.Background(), "Jazz este sábado en Vegueta")
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, "Noche de Jazz", event.Title)
	assert.Equal(t, "Jazz Night", event.TitleEn)
	assert.Equal(t, models.LanguageEs, event.SourceLanguage)
	assert.Equal(t, "2026-03-01", event.DateStart)
	assert.Equal(t, "21:00", models.Deref(event.Time))
	assert.Equal(t, "10€", models.Deref(event.TicketPrice))
	assert.Equal(t, models.CategoryMusic, event.Category)
	assert.False(t, event.Incomplete())
}

func TestExtractFromTextCoercesCategoryAndLocation(t *testing.T) {
	p := &llm.MockProvider{}
	p.On("Complete", mock.Anything, mock.Anything).
		Return(`{"title":"Noche loca","date_start":"2026-03-01T22:00:00Z","time":"9:30","category":"nightlife"}`, nil)

	e := newTestEngine(p, nil)

	event, err := e.ExtractFromText(context.Background(), "Noche loca en el puerto, todos invitados")
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, models.CategoryFestival, event.Category)
	assert.Equal(t, "Gran Canaria", event.Location)
	assert.Equal(t, "2026-03-01", event.DateStart)
	assert.Equal(t, "09:30", models.Deref(event.Time))
	assert.Equal(t, models.LanguageUnknown, event.SourceLanguage)
}

func TestExtractFromTextMalformedReplyIsNotAnEvent(t *testing.T) {
	replies := []string{
		`{"not_event": true}`,
		"I could not find an event in this caption.",
		`{"title": "broken"`,
	}

	for _, reply := range replies {
		p := &llm.MockProvider{}
		p.On("Complete", mock.Anything, mock.Anything).Return(reply, nil)

		event, err := newTestEngine(p, nil).ExtractFromText(context.Background(), "Some longer caption text")
		require.NoError(t, err, reply)
		assert.Nil(t, event, reply)
	}
}

func TestExtractFromTextProviderErrorIsReturned(t *testing.T) {
	p := &llm.MockProvider{}
	p.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("upstream down"))

	_, err := newTestEngine(p, nil).ExtractFromText(context.Background(), "Some longer caption text")
	assert.Error(t, err)
}

func TestExtractFromTextWithoutProvider(t *testing.T) {
	_, err := newTestEngine(nil, nil).ExtractFromText(context.Background(), "Some longer caption text")
	assert.ErrorIs(t, err, llm.ErrNoProvider)
}

func TestExtractDoesNotInvokeVisionWhenTextIsComplete(t *testing.T) {
	p := &llm.MockProvider{}
	p.On("Complete", mock.Anything, llm.ForOperation(llm.OperationText)).Return(completeReply, nil)
	images := &fakeImages{}

	e := newTestEngine(p, images)

	event, err := e.Extract(context.Background(), models.RawRecord{
		Text:     "Jazz este sábado en Vegueta, entrada 10€",
		ImageURL: "https://cdn.example.com/poster.jpg",
	})
	require.NoError(t, err)
	require.NotNil(t, event)

	p.AssertNotCalled(t, "Complete", mock.Anything, llm.ForOperation(llm.OperationVision))
	assert.Zero(t, images.calls)
}

func TestExtractMergesImageIntoIncompleteTextResult(t *testing.T) {
	p := &llm.MockProvider{}
	p.On("Complete", mock.Anything, llm.ForOperation(llm.OperationText)).
		Return(`{"title":"Jazz Night","description":"Live quartet","date_start":"2026-03-01","category":"music"}`, nil)
	p.On("Complete", mock.Anything, llm.ForOperation(llm.OperationVision)).
		Return(`{"title":"JAZZ POSTER","description":"Poster","date_start":"2026-04-04","time":"21:30","ticket_price":"12€","category":"arts"}`, nil)

	e := newTestEngine(p, &fakeImages{})

	event, err := e.Extract(context.Background(), models.RawRecord{
		Text:     "Jazz night this Saturday!",
		ImageURL: "https://cdn.example.com/poster.jpg",
	})
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, "Jazz Night", event.Title)
	assert.Equal(t, "2026-03-01", event.DateStart)
	assert.Equal(t, "Live quartet", models.Deref(event.Description))
	assert.Equal(t, "21:30", models.Deref(event.Time))
	assert.Equal(t, "12€", models.Deref(event.TicketPrice))
	assert.Equal(t, models.CategoryMusic, event.Category)
	p.AssertNumberOfCalls(t, "Complete", 2)
}

func TestExtractFallsBackToImageWhenTextIsNotAnEvent(t *testing.T) {
	p := &llm.MockProvider{}
	p.On("Complete", mock.Anything, llm.ForOperation(llm.OperationText)).Return(`{"not_event":true}`, nil)
	p.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Operation == llm.OperationVision && req.Image != nil && req.Image.MediaType == "image/jpeg"
	})).Return(`{"title":"Mercadillo","date_start":"2026-03-07","category":"market"}`, nil)

	e := newTestEngine(p, &fakeImages{})

	event, err := e.Extract(context.Background(), models.RawRecord{
		Text:     "See you there!! 🎉🎉",
		ImageURL: "https://cdn.example.com/flyer.jpg",
	})
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "Mercadillo", event.Title)
	assert.Equal(t, models.CategoryMarket, event.Category)
}

func TestExtractFallsBackToImageWhenTextCallFails(t *testing.T) {
	p := &llm.MockProvider{}
	p.On("Complete", mock.Anything, llm.ForOperation(llm.OperationText)).
		Return("", errors.New("openai chat completion: status 503"))
	p.On("Complete", mock.Anything, llm.ForOperation(llm.OperationVision)).Return(completeReply, nil)

	images := &fakeImages{}
	e := newTestEngine(p, images)

	event, err := e.Extract(context.Background(), models.RawRecord{
		Text:     "Jazz este sábado en Vegueta",
		ImageURL: "https://cdn.example.com/flyer.jpg",
	})
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "Noche de Jazz", event.Title)
	assert.Equal(t, 1, images.calls)
}

func TestExtractKeepsTextErrorWhenImageAlsoFails(t *testing.T) {
	textErr := errors.New("openai chat completion: status 503")
	p := &llm.MockProvider{}
	p.On("Complete", mock.Anything, llm.ForOperation(llm.OperationText)).Return("", textErr)
	p.On("Complete", mock.Anything, llm.ForOperation(llm.OperationVision)).
		Return("", errors.New("openai chat completion: status 503"))

	e := newTestEngine(p, &fakeImages{})

	event, err := e.Extract(context.Background(), models.RawRecord{
		Text:     "Jazz este sábado en Vegueta",
		ImageURL: "https://cdn.example.com/flyer.jpg",
	})
	assert.Nil(t, event)
	require.Error(t, err)
	assert.ErrorIs(t, err, textErr)
}

func TestExtractTextErrorWithoutImage(t *testing.T) {
	p := &llm.MockProvider{}
	p.On("Complete", mock.Anything, llm.ForOperation(llm.OperationText)).Return("", errors.New("status 500"))

	images := &fakeImages{}
	e := newTestEngine(p, images)

	_, err := e.Extract(context.Background(), models.RawRecord{Text: "Jazz este sábado en Vegueta"})
	require.Error(t, err)
	assert.Zero(t, images.calls)
}

func TestExtractShortCaptionSkipsImageToo(t *testing.T) {
	p := &llm.MockProvider{}
	images := &fakeImages{}
	e := newTestEngine(p, images)

	event, err := e.Extract(context.Background(), models.RawRecord{
		Text:     "Hi there",
		ImageURL: "https://cdn.example.com/flyer.jpg",
	})
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Zero(t, images.calls)
	p.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestExtractImageDownloadFailureYieldsNil(t *testing.T) {
	p := &llm.MockProvider{}
	p.On("Complete", mock.Anything, llm.ForOperation(llm.OperationText)).Return(`{"not_event":true}`, nil)

	e := newTestEngine(p, &fakeImages{err: errors.New("404")})

	event, err := e.Extract(context.Background(), models.RawRecord{
		Text:     "See you there!! 🎉🎉",
		ImageURL: "https://cdn.example.com/missing.jpg",
	})
	require.NoError(t, err)
	assert.Nil(t, event)
	p.AssertNotCalled(t, "Complete", mock.Anything, llm.ForOperation(llm.OperationVision))
}

func TestVisionUserContentTruncatesCaption(t *testing.T) {
	long := make([]rune, 250)
	for i := range long {
		long[i] = 'a'
	}

	content := visionUserContent("2026-02-20", string(long))
	assert.Contains(t, content, "Optional caption context: ")
	assert.Contains(t, content, "…")
	assert.NotContains(t, content, string(long))

	assert.NotContains(t, visionUserContent("2026-02-20", "  "), "caption context")
}
