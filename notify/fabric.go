// Package notify keeps the per-user notification table in step with the
// conditions that raise notifications, and mails the people concerned.
package notify

import (
	"context"
	"sort"

	"github.com/mmdatafocus/rms_backend/appctx"
	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/intl"
	"github.com/mmdatafocus/rms_backend/metrics"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Store interface {
	FindOpenNotification(ctx context.Context, userId int, typ, tablename string, recordId int) (*models.Notification, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, f models.NotificationFilter) ([]*models.Notification, error)
	RetractNotifications(ctx context.Context, f models.NotificationFilter) (int64, error)
	ListSiteOperators(ctx context.Context, siteIds []int, roles []string) ([]*models.SiteOperator, error)
	ListUsersByEntity(ctx context.Context, peId int) ([]*models.User, error)
}

// Recipient is a user to be notified.
type Recipient struct {
	UserId   int
	PeId     int
	Email    string
	Language string
}

// Texts is one rendering of a message in one language.
type Texts struct {
	Name    string
	Subject string
	Body    string
}

// Message describes what to tell a group of recipients. Render is called
// once per distinct recipient language.
type Message struct {
	Type      string
	Tablename string
	RecordId  int
	Url       string
	Render    func(lang string) Texts
}

type Fabric struct {
	st         Store
	mailer     Mailer
	translator *intl.Translator
	logger     *logrus.Logger

	// OperatorRoles are the roles whose holders operate a site.
	OperatorRoles []string
	// DefaultLanguage is used for recipients without a language.
	DefaultLanguage string
}

func NewFabric(st Store, mailer Mailer, translator *intl.Translator, logger *logrus.Logger) *Fabric {
	if logger == nil {
		logger = config.GetLogger()
	}
	if translator == nil {
		translator = intl.Default()
	}
	s := config.GetSettings()
	return &Fabric{
		st:              st,
		mailer:          mailer,
		translator:      translator,
		logger:          logger,
		OperatorRoles:   s.OperatorRoles,
		DefaultLanguage: s.DefaultLanguage,
	}
}

func (f *Fabric) Translator() *intl.Translator { return f.translator }

// Notify creates the open notification for (userID, typ, tablename, recordID)
// unless one exists. created reports whether this call inserted it; a
// concurrent insert that wins the race is read back.
func (f *Fabric) Notify(ctx context.Context, userID int, typ, tablename string, recordID int, name, url, lang string) (*models.Notification, bool, error) {
	existing, err := f.st.FindOpenNotification(ctx, userID, typ, tablename, recordID)
	if err == nil {
		return existing, false, nil
	}
	if !utils.IsNotFound(err) {
		return nil, false, errors.Wrap(err, "find notification")
	}

	n := &models.Notification{
		UserId:    userID,
		Type:      typ,
		Tablename: tablename,
		RecordId:  recordID,
		IsOpen:    utils.NewTrue(),
		Name:      name,
		Url:       url,
		Language:  lang,
	}
	if err := f.st.CreateNotification(ctx, n); err != nil {
		if !utils.IsDuplicate(err) {
			return nil, false, errors.Wrap(err, "create notification")
		}
		winner, err := f.st.FindOpenNotification(ctx, userID, typ, tablename, recordID)
		if err != nil {
			return nil, false, errors.Wrap(err, "read back notification")
		}
		return winner, false, nil
	}
	metrics.NotificationCreated(typ)
	return n, true, nil
}

// Retract soft-deletes the open notifications matching filter.
func (f *Fabric) Retract(ctx context.Context, filter models.NotificationFilter) (int64, error) {
	n, err := f.st.RetractNotifications(ctx, filter)
	if err != nil {
		return 0, errors.Wrap(err, "retract notifications")
	}
	if n > 0 {
		metrics.NotificationsRetracted(filter.Type, n)
	}
	return n, nil
}

// Open lists the open notifications matching filter.
func (f *Fabric) Open(ctx context.Context, filter models.NotificationFilter) ([]*models.Notification, error) {
	return f.st.ListNotifications(ctx, filter)
}

// DispatchEmail mails every user of entity peID. Failures are logged.
func (f *Fabric) DispatchEmail(ctx context.Context, peID int, subject, body string) {
	users, err := f.st.ListUsersByEntity(ctx, peID)
	if err != nil {
		config.LogError(f.logger, "notify", "DispatchEmail", "list users", peID, err)
		return
	}
	for _, u := range users {
		f.send(ctx, Mail{PeId: peID, To: u.Email, Subject: subject, Body: body})
	}
}

func (f *Fabric) send(ctx context.Context, m Mail) bool {
	if f.mailer == nil || m.To == "" {
		return false
	}
	if err := f.mailer.Send(ctx, m); err != nil {
		metrics.Email("failed")
		f.logger.WithFields(logrus.Fields{
			"field": "send",
			"pe_id": m.PeId,
			"to":    m.To,
		}).Warn("email not sent: " + err.Error())
		return false
	}
	metrics.Email("queued")
	return true
}

// SiteOperators groups the operators of one site.
type SiteOperators struct {
	SiteId    int
	Name      string
	Operators []Recipient
}

// OperatorsForSites returns, per site id, the users holding an operator role
// on the site or its organisation. Sites without operators are absent.
func (f *Fabric) OperatorsForSites(ctx context.Context, siteIDs []int) (map[int]*SiteOperators, error) {
	out := map[int]*SiteOperators{}
	if len(siteIDs) == 0 {
		return out, nil
	}
	rows, err := f.st.ListSiteOperators(ctx, siteIDs, f.OperatorRoles)
	if err != nil {
		return nil, errors.Wrap(err, "site operators")
	}
	for _, r := range rows {
		g := out[r.SiteId]
		if g == nil {
			g = &SiteOperators{SiteId: r.SiteId, Name: r.SiteName}
			out[r.SiteId] = g
		}
		g.Operators = append(g.Operators, Recipient{UserId: r.UserId, PeId: r.PeId, Email: r.Email, Language: r.Language})
	}
	return out, nil
}

// Broadcast notifies every recipient of msg, rendering the texts once per
// language, and emails only those for whom a new notification was created.
// A summary is added to the request session.
func (f *Fabric) Broadcast(ctx context.Context, recipients []Recipient, msg Message) (notified int, err error) {
	byLang := map[string][]Recipient{}
	for _, r := range recipients {
		lang := r.Language
		if lang == "" {
			lang = f.DefaultLanguage
		}
		lang = intl.Normalize(lang)
		byLang[lang] = append(byLang[lang], r)
	}
	langs := make([]string, 0, len(byLang))
	for l := range byLang {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	emailed := 0
	seen := map[int]bool{}
	for _, lang := range langs {
		texts := msg.Render(lang)
		for _, r := range byLang[lang] {
			if seen[r.UserId] {
				continue
			}
			seen[r.UserId] = true
			_, created, err := f.Notify(ctx, r.UserId, msg.Type, msg.Tablename, msg.RecordId, texts.Name, msg.Url, lang)
			if err != nil {
				return notified, err
			}
			if !created {
				continue
			}
			notified++
			if f.send(ctx, Mail{PeId: r.PeId, To: r.Email, Subject: texts.Subject, Body: texts.Body}) {
				emailed++
			}
		}
	}

	if session := appctx.GetSession(ctx); session != nil && notified > 0 {
		lang := utils.GetLanguageFromContext(ctx)
		if lang == "" {
			lang = f.DefaultLanguage
		}
		session.Add(f.translator.T(lang, "Session.Notified", map[string]any{"Count": notified}))
		if emailed > 0 {
			session.Add(f.translator.T(lang, "Session.Emailed", map[string]any{"Count": emailed}))
		}
	}
	return notified, nil
}

// Localized renders the Notify.<key>.{Name,Subject,Body} messages.
func (f *Fabric) Localized(key string, data map[string]any) func(lang string) Texts {
	return func(lang string) Texts {
		prefix := "Notify." + key + "."
		return Texts{
			Name:    f.translator.T(lang, prefix+"Name", data),
			Subject: f.translator.T(lang, prefix+"Subject", data),
			Body:    f.translator.T(lang, prefix+"Body", data),
		}
	}
}
