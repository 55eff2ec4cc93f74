package breeze

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/breeze-rmm/docverify/internal/model"
)

// Fixture names for the baseline data every conformance run relies on.
const (
	fixtureOrgName  = "Docs Conformance Org"
	fixtureSiteName = "Docs Conformance Site"
	fixtureAdmin    = "Docs Conformance Admin"
)

// Seed registers/retrieves the admin account and organizational fixtures
// through the product's own public API and returns the environment context
// for a run. Idempotent: safe to call when the fixtures already exist.
func Seed(ctx context.Context, client Client, adminEmail, adminPassword string) (model.EnvContext, error) {
	if err := client.Register(ctx, adminEmail, adminPassword, fixtureAdmin); err != nil {
		return nil, eris.Wrap(err, "seed: register admin")
	}

	token, err := client.Login(ctx, adminEmail, adminPassword)
	if err != nil {
		return nil, eris.Wrap(err, "seed: login")
	}

	orgID, err := client.EnsureOrg(ctx, token, fixtureOrgName)
	if err != nil {
		return nil, eris.Wrap(err, "seed: ensure organization")
	}

	siteID, enrollmentKey, err := client.EnsureSite(ctx, token, orgID, fixtureSiteName)
	if err != nil {
		return nil, eris.Wrap(err, "seed: ensure site")
	}

	zap.L().Info("fixtures seeded",
		zap.String("org_id", orgID),
		zap.String("site_id", siteID),
	)

	return model.EnvContext{
		model.EnvOrgID:         orgID,
		model.EnvSiteID:        siteID,
		model.EnvEnrollmentKey: enrollmentKey,
		model.EnvAdminEmail:    adminEmail,
		model.EnvAdminPassword: adminPassword,
		model.EnvAuthToken:     token,
	}, nil
}
