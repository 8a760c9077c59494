package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/myloveankyy/xkey-auction-sub000/internal/email"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
)

const (
	TemplateNewLead = "new_lead"

	DefaultLocale = "en-IN"
)

// Built-in templates, used when the database has no override.
var defaultEmailTemplates = map[string]models.EmailTemplate{
	TemplateNewLead: {
		TemplateID: TemplateNewLead,
		Locale:     DefaultLocale,
		Subject:    "[{{.app_name}}] New lead for {{.vehicle_name}}",
		Body: `A buyer asked for a callback about {{.vehicle_name}}.

Phone: {{.phone_number}}

Review and assign it here: {{.leads_url}}
`,
	},
}

// Template failures that retrying cannot fix.
var (
	ErrTemplateNotFound = errors.New("email template not found")
	ErrTemplateInvalid  = errors.New("email template cannot be rendered")
)

// RenderedEmail is a template after substitution.
type RenderedEmail struct {
	Subject string
	Body    string
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
	Render(ctx context.Context, templateID, locale string, data map[string]any) (*RenderedEmail, error)
	SaveTemplate(ctx context.Context, template *models.EmailTemplate) error
}

const emailTemplatesCollection = "email_templates"

type emailTemplateService struct {
	db *mongo.Database
}

func NewEmailTemplateService(db *mongo.Database) IEmailTemplateService {
	return &emailTemplateService{db: db}
}

// GetTemplate prefers a stored override for the locale and falls back to the built-in.
func (s *emailTemplateService) GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	if s.db != nil {
		var template models.EmailTemplate
		err := s.db.Collection(emailTemplatesCollection).FindOne(ctx, bson.M{
			"template_id": templateID,
			"locale":      locale,
		}).Decode(&template)
		if err == nil {
			return &template, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("error retrieving template: %w", err)
		}
	}
	if def, ok := defaultEmailTemplates[templateID]; ok {
		return &def, nil
	}
	return nil, fmt.Errorf("%w: %s (locale: %s)", ErrTemplateNotFound, templateID, locale)
}

func (s *emailTemplateService) Render(ctx context.Context, templateID, locale string, data map[string]any) (*RenderedEmail, error) {
	tmpl, err := s.GetTemplate(ctx, templateID, locale)
	if err != nil {
		return nil, err
	}
	subject, err := email.Render(templateID+".subject", tmpl.Subject, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateInvalid, err)
	}
	body, err := email.Render(templateID+".body", tmpl.Body, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateInvalid, err)
	}
	return &RenderedEmail{Subject: subject, Body: body}, nil
}

// SaveTemplate upserts an override keyed by template ID and locale.
func (s *emailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	template.GenIDIfEmpty()
	_, err := s.db.Collection(emailTemplatesCollection).UpdateOne(ctx,
		bson.M{"template_id": template.TemplateID, "locale": template.Locale},
		bson.M{
			"$set":         bson.M{"subject": template.Subject, "body": template.Body},
			"$setOnInsert": bson.M{"_id": template.ID},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}
