package requisition

import (
	"context"
	"sort"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/notify"
	"github.com/mmdatafocus/rms_backend/realm"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ApproverRule is an approver rule resolved to the user behind it.
type ApproverRule struct {
	PersonId int
	PeId     int // entity the rule is attached to
	Title    string
	Matcher  bool
	User     notify.Recipient
}

// Approvers returns the approvers of a site: the rules attached to the site
// entity or any of its ancestors, one per person, the nearest rule winning.
// Rules whose person has no user account are skipped.
func (s *Service) Approvers(ctx context.Context, siteID int) ([]*ApproverRule, error) {
	site, err := s.st.GetSite(ctx, siteID)
	if err != nil {
		return nil, errors.Wrapf(err, "site %d", siteID)
	}
	lineage, err := realm.Lineage(ctx, s.st, site.PeId)
	if err != nil {
		return nil, errors.Wrap(err, "site ancestry")
	}
	distance := make(map[int]int, len(lineage))
	for i, pe := range lineage {
		distance[pe] = i
	}
	rules, err := s.st.ListApproversForEntities(ctx, lineage)
	if err != nil {
		return nil, errors.Wrap(err, "list approvers")
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if distance[rules[i].PeId] != distance[rules[j].PeId] {
			return distance[rules[i].PeId] < distance[rules[j].PeId]
		}
		return rules[i].PersonId < rules[j].PersonId
	})

	seen := map[int]bool{}
	var out []*ApproverRule
	for _, r := range rules {
		if seen[r.PersonId] {
			continue
		}
		seen[r.PersonId] = true
		u, err := s.st.GetUserByPerson(ctx, r.PersonId)
		if utils.IsNotFound(err) {
			s.logger.WithFields(logrus.Fields{
				"field":     "Approvers",
				"person_id": r.PersonId,
				"site_id":   siteID,
			}).Warn("approver has no user account, skipped")
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "user of person %d", r.PersonId)
		}
		out = append(out, &ApproverRule{
			PersonId: r.PersonId,
			PeId:     r.PeId,
			Title:    r.Title,
			Matcher:  r.Matcher,
			User:     notify.Recipient{UserId: u.ID, PeId: u.PeId, Email: u.Email, Language: u.Language},
		})
	}
	return out, nil
}

// Submit moves a draft requisition to submitted and asks its approvers for
// approval. A requisition without approvers is approved directly.
func (s *Service) Submit(ctx context.Context, reqID int) (req *models.Req, err error) {
	ctx, span := s.span(ctx, "Submit")
	defer func() { endSpan(span, err) }()

	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	err = s.st.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if req, err = s.st.GetReq(ctx, reqID); err != nil {
			return errors.Wrapf(err, "requisition %d", reqID)
		}
		if req.RequesterId != userID && !s.isAdmin(ctx, userID) {
			return errors.Wrap(ErrForbidden, "only the requester can submit")
		}
		if req.WorkflowStatus != models.ReqStatusDraft {
			return errors.Wrapf(ErrInvalidTransition, "submit %s requisition", req.WorkflowStatus)
		}
		items, err := s.st.ListReqItems(ctx, reqID)
		if err != nil {
			return errors.Wrap(err, "list requisition items")
		}
		if len(items) == 0 {
			return ErrNoItems
		}
		site, err := s.st.GetSite(ctx, req.SiteId)
		if err != nil {
			return errors.Wrapf(err, "site %d", req.SiteId)
		}
		approvers, err := s.Approvers(ctx, req.SiteId)
		if err != nil {
			return err
		}

		if len(approvers) == 0 {
			if err := s.setWorkflow(ctx, req, models.ReqStatusApproved); err != nil {
				return err
			}
			return s.OnReqApproved(ctx, req, items)
		}
		if err := s.setWorkflow(ctx, req, models.ReqStatusSubmitted); err != nil {
			return err
		}
		return s.OnReqSubmit(ctx, req, site, approvers)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Service) setWorkflow(ctx context.Context, req *models.Req, status models.ReqWorkflowStatus) error {
	if err := s.st.UpdateReqStatus(ctx, req.ID, status, req.TransitStatus, req.FulfilStatus); err != nil {
		return errors.Wrap(err, "update requisition status")
	}
	req.WorkflowStatus = status
	return nil
}

// OnReqSubmit sends one req_approve notification to each approver.
func (s *Service) OnReqSubmit(ctx context.Context, req *models.Req, site *models.Site, approvers []*ApproverRule) error {
	recipients := make([]notify.Recipient, 0, len(approvers))
	for _, a := range approvers {
		recipients = append(recipients, a.User)
	}
	url := reqURL(req.ID)
	_, err := s.fabric.Broadcast(ctx, recipients, notify.Message{
		Type:      models.NotificationReqApprove,
		Tablename: "inv_req",
		RecordId:  req.ID,
		Url:       url,
		Render: s.fabric.Localized("ReqApprove", map[string]any{
			"ReqRef": req.ReqRef,
			"Site":   site.Name,
			"Url":    url,
		}),
	})
	return err
}

// Approve records the approval of the current user. The approval of a
// matcher approves the requisition.
func (s *Service) Approve(ctx context.Context, reqID int) (req *models.Req, err error) {
	ctx, span := s.span(ctx, "Approve")
	defer func() { endSpan(span, err) }()

	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	err = s.st.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if req, err = s.st.GetReq(ctx, reqID); err != nil {
			return errors.Wrapf(err, "requisition %d", reqID)
		}
		if req.WorkflowStatus != models.ReqStatusSubmitted {
			return errors.Wrapf(ErrInvalidTransition, "approve %s requisition", req.WorkflowStatus)
		}
		approvers, err := s.Approvers(ctx, req.SiteId)
		if err != nil {
			return err
		}
		var rule *ApproverRule
		for _, a := range approvers {
			if a.User.UserId == userID {
				rule = a
				break
			}
		}
		if rule == nil {
			return ErrNotApprover
		}

		if err := s.st.CreateReqApproval(ctx, &models.ReqApproval{ReqId: req.ID, PersonId: rule.PersonId, Title: rule.Title}); err != nil {
			if utils.IsDuplicate(err) {
				return ErrAlreadyApproved
			}
			return errors.Wrap(err, "record approval")
		}
		if err := s.OnReqApprove(ctx, req, userID); err != nil {
			return err
		}
		if !rule.Matcher {
			return nil
		}
		if err := s.setWorkflow(ctx, req, models.ReqStatusApproved); err != nil {
			return err
		}
		items, err := s.st.ListReqItems(ctx, req.ID)
		if err != nil {
			return errors.Wrap(err, "list requisition items")
		}
		return s.OnReqApproved(ctx, req, items)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// OnReqApprove retracts the req_approve notification of the approver.
func (s *Service) OnReqApprove(ctx context.Context, req *models.Req, userID int) error {
	_, err := s.fabric.Retract(ctx, models.NotificationFilter{
		UserIds:   []int{userID},
		Type:      models.NotificationReqApprove,
		Tablename: "inv_req",
		RecordId:  req.ID,
	})
	return err
}

// OnReqApproved retracts all outstanding req_approve notifications of req
// and asks the operators of each sourcing site to fulfil it.
func (s *Service) OnReqApproved(ctx context.Context, req *models.Req, items []*models.ReqItem) error {
	if _, err := s.fabric.Retract(ctx, models.NotificationFilter{
		Type:      models.NotificationReqApprove,
		Tablename: "inv_req",
		RecordId:  req.ID,
	}); err != nil {
		return err
	}

	var siteIDs []int
	for _, it := range items {
		if it.SiteId != nil {
			siteIDs = append(siteIDs, *it.SiteId)
		}
	}
	groups, err := s.fabric.OperatorsForSites(ctx, utils.SortedUniqueInts(siteIDs))
	if err != nil {
		return err
	}
	url := reqURL(req.ID)
	for _, siteID := range utils.SortedUniqueInts(siteIDs) {
		g, ok := groups[siteID]
		if !ok {
			s.logger.WithFields(logrus.Fields{
				"field":   "OnReqApproved",
				"req_id":  req.ID,
				"site_id": siteID,
			}).Warn("sourcing site has no operators")
			continue
		}
		if _, err := s.fabric.Broadcast(ctx, g.Operators, notify.Message{
			Type:      models.NotificationReqFulfil,
			Tablename: "inv_req",
			RecordId:  req.ID,
			Url:       url,
			Render: s.fabric.Localized("ReqFulfil", map[string]any{
				"ReqRef": req.ReqRef,
				"Site":   g.Name,
				"Url":    url,
			}),
		}); err != nil {
			return err
		}
	}
	return nil
}

// Cancel cancels a draft or submitted requisition.
func (s *Service) Cancel(ctx context.Context, reqID int) (req *models.Req, err error) {
	ctx, span := s.span(ctx, "Cancel")
	defer func() { endSpan(span, err) }()

	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	err = s.st.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if req, err = s.st.GetReq(ctx, reqID); err != nil {
			return errors.Wrapf(err, "requisition %d", reqID)
		}
		if req.RequesterId != userID && !s.isAdmin(ctx, userID) {
			return errors.Wrap(ErrForbidden, "only the requester can cancel")
		}
		if err := editable(req); err != nil {
			return err
		}
		if err := s.setWorkflow(ctx, req, models.ReqStatusCancelled); err != nil {
			return err
		}
		return s.OnReqCancel(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// OnReqCancel retracts every notification raised for req.
func (s *Service) OnReqCancel(ctx context.Context, req *models.Req) error {
	n, err := s.fabric.Retract(ctx, models.NotificationFilter{Tablename: "inv_req", RecordId: req.ID})
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.WithFields(logrus.Fields{"field": "OnReqCancel", "req_id": req.ID, "retracted": n}).Info("notifications retracted")
	}
	return nil
}

// AddApprover attaches an approver rule for personID to entity peID.
func (s *Service) AddApprover(ctx context.Context, peID, personID int, title string, matcher bool) (*models.Approver, error) {
	if _, err := s.st.GetPerson(ctx, personID); err != nil {
		return nil, errors.Wrapf(err, "person %d", personID)
	}
	a := &models.Approver{PeId: peID, PersonId: personID, Title: title, Matcher: matcher}
	if err := s.st.CreateApprover(ctx, a); err != nil {
		if utils.IsDuplicate(err) {
			return nil, errors.Wrapf(err, "person %d already approves for entity %d", personID, peID)
		}
		config.LogError(s.logger, "requisition", "AddApprover", "create approver", a, err)
		return nil, err
	}
	return a, nil
}
