package store_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/location"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/realm"
	"github.com/mmdatafocus/rms_backend/store"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	integrationStore *store.Store
	realmResolver    = realm.New(nil, false)
)

// TestMain starts one MySQL container for every test in the package when
// INTEGRATION_TESTS is set.
func TestMain(m *testing.M) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		os.Exit(m.Run())
	}
	name, port, err := startMySQLContainer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		_ = dockerRmForce(name)
		os.Exit(1)
	}
	os.Setenv("DB_USER", "root")
	os.Setenv("DB_PASSWORD", "testpw")
	os.Setenv("DB_HOST", "127.0.0.1")
	os.Setenv("DB_PORT", port)
	os.Setenv("DB_NAME", "rms_test")

	config.ConnectDatabaseWithRetry(realm.NewPlugin(realmResolver))
	if db := config.GetDB(); db != nil {
		models.MigrateTable(db)
		integrationStore = store.New(db)
	}
	code := m.Run()
	_ = dockerRmForce(name)
	os.Exit(code)
}

func connect(t *testing.T) *store.Store {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}
	require.NotNil(t, integrationStore, "database not initialized")
	return integrationStore
}

func TestOutboxClaimLifecycle(t *testing.T) {
	st := connect(t)
	ctx := utils.SkipRealmInContext(context.Background())
	now := time.Now().UTC().Truncate(time.Second)

	mail := &models.EmailOutbox{Recipient: "ops@example.org", Subject: "low stock", Status: models.OutboxStatusPending}
	require.NoError(t, st.CreateEmailOutbox(ctx, mail))

	claimed, err := st.ClaimEmails(ctx, now, now.Add(-time.Minute), 10, 3, "worker-a")
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, 1, claimed[0].Attempts)

	// a second worker sees nothing while the lock is fresh
	again, err := st.ClaimEmails(ctx, now, now.Add(-time.Minute), 10, 3, "worker-b")
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, st.MarkEmailFailed(ctx, mail.ID, "smtp down", nil))
	n, err := st.ReplayDeadEmails(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	claimed, err = st.ClaimEmails(ctx, now.Add(time.Minute), now.Add(-time.Minute), 10, 3, "worker-a")
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, st.MarkEmailSent(ctx, mail.ID, now))

	claimed, err = st.ClaimEmails(ctx, now.Add(time.Hour), now.Add(time.Hour), 10, 3, "worker-a")
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestLocationTreeOnMySQL(t *testing.T) {
	st := connect(t)
	ctx := utils.SkipRealmInContext(context.Background())

	l0, l1 := "L0", "L1"
	country := &models.Location{Name: "Freedonia", Level: &l0, Lat: utils.NewFloat(10), Lon: utils.NewFloat(20)}
	require.NoError(t, st.CreateLocation(ctx, country))
	region := &models.Location{Name: "North", Level: &l1, ParentId: &country.ID, Inherited: true}
	require.NoError(t, st.CreateLocation(ctx, region))

	tree := location.New(st, nil)
	tree.ChunkSize = 1
	n, err := tree.RebuildLocationTree(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)

	got, err := st.GetLocation(ctx, region.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d/%d", country.ID, region.ID), got.Path)
	require.NotNil(t, got.L0)
	assert.Equal(t, "Freedonia", *got.L0)
	require.NotNil(t, got.Lat)
	assert.Equal(t, 10.0, *got.Lat)
}

// seedSite creates site id of organisation org with its instance entity.
func seedSite(t *testing.T, st *store.Store, id int, org *models.Organisation) *models.Site {
	t.Helper()
	ctx := utils.SkipRealmInContext(context.Background())
	e := &models.Entity{Kind: models.EntityKindSite, InstanceTable: "org_site", InstanceId: id}
	require.NoError(t, st.CreateEntity(ctx, e))
	require.NoError(t, st.CreateAffiliation(ctx, &models.Affiliation{ParentId: org.PeId, ChildId: e.ID, Role: "OU", RoleType: models.RoleTypeOUMember}))
	site := &models.Site{ID: id, InstanceType: models.SiteTypeWarehouse, PeId: e.ID, OrganisationId: org.ID, Name: fmt.Sprintf("Warehouse %d", id)}
	require.NoError(t, st.CreateSite(ctx, site))
	return site
}

func TestRealmPluginOnRequisition(t *testing.T) {
	st := connect(t)
	seed := utils.SkipRealmInContext(context.Background())
	ctx := context.Background()

	orgEntity := &models.Entity{Kind: models.EntityKindOrganisation, InstanceTable: "org_organisation", InstanceId: 1}
	require.NoError(t, st.CreateEntity(seed, orgEntity))
	org := &models.Organisation{ID: 1, PeId: orgEntity.ID, Name: "Red Cross", OrganisationType: models.OrganisationTypeRedCross, RootOrganisation: 1}
	require.NoError(t, st.CreateOrganisation(seed, org))
	central := seedSite(t, st, 10, org)
	north := seedSite(t, st, 20, org)
	south := seedSite(t, st, 30, org)

	req := &models.Req{ReqRef: "S10-REQ-REALM", SiteId: central.ID, RequesterId: 1, Date: time.Now().UTC()}
	require.NoError(t, st.CreateReq(ctx, req))
	require.NotNil(t, req.RealmEntity)
	assert.Equal(t, central.PeId, *req.RealmEntity)

	item := &models.ReqItem{ReqId: req.ID, ItemId: 1, ItemPackId: 1, Quantity: decimal.NewFromInt(5), SiteId: utils.NewInt(north.ID)}
	require.NoError(t, st.CreateReqItem(ctx, item))
	shared, err := st.GetEntityByName(ctx, realm.TwoSitesName(central.ID, north.ID))
	require.NoError(t, err)
	stored, err := st.GetReqItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RealmEntity)
	assert.Equal(t, shared.ID, *stored.RealmEntity)

	_, err = realmResolver.Refresh(ctx, st, "inv_req", req.ID, req.Row())
	require.NoError(t, err)
	got, err := st.GetReq(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RealmEntity)
	assert.Equal(t, shared.ID, *got.RealmEntity)

	// moving the sourcing site re-resolves the item on update
	stored.SiteId = utils.NewInt(south.ID)
	require.NoError(t, st.UpdateReqItem(ctx, stored))
	moved, err := st.GetEntityByName(ctx, realm.TwoSitesName(central.ID, south.ID))
	require.NoError(t, err)
	stored, err = st.GetReqItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RealmEntity)
	assert.Equal(t, moved.ID, *stored.RealmEntity)
}

func startMySQLContainer() (containerName, hostPort string, err error) {
	name := fmt.Sprintf("rms-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=rms_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		return name, "", fmt.Errorf("start mysql container: %w\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		return name, "", fmt.Errorf("mysql docker port: %w", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return name, "", fmt.Errorf("mysql did not become ready")
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
