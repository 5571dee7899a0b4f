package handler

import (
	"time"

	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/reminder"
	"github.com/sakif/houseplant-tracker/internal/service"
)

// localTimeLayout is how dates are shown to people.
const localTimeLayout = "2006-01-02 15:04"

// UploadsPath is the URL prefix stored photos are served under.
const UploadsPath = "/uploads/"

// Presenter turns stored records (always UTC) into response views in the
// display timezone. This is the only place the display zone is applied.
type Presenter struct {
	loc *time.Location
	now func() time.Time
}

// NewPresenter uses loc for every local time field.
func NewPresenter(loc *time.Location) Presenter {
	if loc == nil {
		loc = time.UTC
	}
	return Presenter{loc: loc, now: time.Now}
}

func (p Presenter) local(t time.Time) string {
	return t.In(p.loc).Format(localTimeLayout)
}

func photoURL(filename string) string {
	if filename == "" {
		return ""
	}
	return UploadsPath + filename
}

type plantView struct {
	model.Plant
	PhotoURL          string     `json:"photoUrl,omitempty"`
	LastWateredLocal  string     `json:"lastWateredLocal,omitempty"`
	NextWatering      *time.Time `json:"nextWatering,omitempty"`
	NextWateringLocal string     `json:"nextWateringLocal,omitempty"`
	NeedsWater        bool       `json:"needsWater"`
}

type careEventView struct {
	model.CareEvent
	LocalTime string `json:"localTime"`
}

type journalEntryView struct {
	model.JournalEntry
	LocalTime string `json:"localTime"`
	PhotoURL  string `json:"photoUrl,omitempty"`
}

type plantListView struct {
	Plants   []plantView `json:"plants"`
	Species  string      `json:"species"`
	Location string      `json:"location"`
	Flashes  []Flash     `json:"flashes"`
}

type plantDetailView struct {
	Plant          plantView          `json:"plant"`
	CareEvents     []careEventView    `json:"careEvents"`
	JournalEntries []journalEntryView `json:"journalEntries"`
	EventTypes     []model.EventType  `json:"eventTypes"`
	Flashes        []Flash            `json:"flashes"`
}

func (p Presenter) plant(pl *model.Plant) plantView {
	v := plantView{Plant: *pl, PhotoURL: photoURL(pl.PhotoFilename)}
	if pl.LastWatered != nil {
		v.LastWateredLocal = p.local(*pl.LastWatered)
	}
	if due, overdue := reminder.Overdue(pl, p.now()); !due.IsZero() {
		v.NextWatering = &due
		v.NextWateringLocal = p.local(due)
		v.NeedsWater = overdue
	}
	return v
}

func (p Presenter) plants(list []model.Plant) []plantView {
	out := make([]plantView, 0, len(list))
	for i := range list {
		out = append(out, p.plant(&list[i]))
	}
	return out
}

func (p Presenter) careEvent(e *model.CareEvent) careEventView {
	return careEventView{CareEvent: *e, LocalTime: p.local(e.EventDate)}
}

func (p Presenter) journalEntry(e *model.JournalEntry) journalEntryView {
	return journalEntryView{
		JournalEntry: *e,
		LocalTime:    p.local(e.EntryDate),
		PhotoURL:     photoURL(e.PhotoFilename),
	}
}

func (p Presenter) detail(d *service.PlantDetail, flashes []Flash) plantDetailView {
	v := plantDetailView{
		Plant:          p.plant(d.Plant),
		CareEvents:     make([]careEventView, 0, len(d.Events)),
		JournalEntries: make([]journalEntryView, 0, len(d.Entries)),
		EventTypes:     model.EventTypes,
		Flashes:        flashes,
	}
	for i := range d.Events {
		v.CareEvents = append(v.CareEvents, p.careEvent(&d.Events[i]))
	}
	for i := range d.Entries {
		v.JournalEntries = append(v.JournalEntries, p.journalEntry(&d.Entries[i]))
	}
	return v
}
