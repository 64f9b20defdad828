package column

import (
	"context"
	"errors"
	"strings"
	"testing"

	"crm-pipeline/internal/events"
	"crm-pipeline/internal/models"
	"crm-pipeline/internal/testutil"

	"gorm.io/gorm"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func setup(t *testing.T) (*gorm.DB, Service, *testutil.RecordingPublisher, *models.Tenant) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	pub := &testutil.RecordingPublisher{}
	tenant := testutil.CreateTenant(t, db, "acme")
	return db, NewService(db, pub, nil), pub, tenant
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func columnByName(t *testing.T, svc Service, tenantID uint, name string) *models.Column {
	t.Helper()
	columns, err := svc.ListColumns(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Failed to list columns: %v", err)
	}
	for _, c := range columns {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("Column %q not found", name)
	return nil
}

// ============================================================================
// TEST CASES
// ============================================================================

func TestProvisionDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, svc, pub, tenant := setup(t)

	if err := svc.ProvisionDefaults(ctx, tenant.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	columns, err := svc.ListColumns(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("Failed to list columns: %v", err)
	}

	want := []struct {
		name   string
		status models.LeadStatus
	}{
		{"New", models.StatusNew},
		{"Contacted", models.StatusContacted},
		{"Follow Up", models.StatusFollowUp},
		{"Proposal", models.StatusProposal},
		{"Negotiation", models.StatusNegotiation},
		{"Qualified", models.StatusQualified},
		{"Unqualified", models.StatusUnqualified},
		{"Converted", models.StatusConverted},
		{"Lost", models.StatusLost},
	}
	if len(columns) != len(want) {
		t.Fatalf("Expected %d columns, got %d", len(want), len(columns))
	}
	for i, w := range want {
		c := columns[i]
		if c.Name != w.name || c.Status != w.status || c.Pipeline != models.PipelineDefault {
			t.Errorf("Column %d: expected %s@(default,%s), got %s@(%s,%s)", i, w.name, w.status, c.Name, c.Pipeline, c.Status)
		}
		if !c.IsSystem {
			t.Errorf("Column %q should be a system column", c.Name)
		}
		if c.Order != i {
			t.Errorf("Column %q: expected order %d, got %d", c.Name, i, c.Order)
		}
	}

	if len(pub.Events()) != 1 {
		t.Errorf("Expected one provisioning event, got %d", len(pub.Events()))
	}

	// Idempotent
	if err := svc.ProvisionDefaults(ctx, tenant.ID); err != nil {
		t.Fatalf("Second provisioning failed: %v", err)
	}
	columns, _ = svc.ListColumns(ctx, tenant.ID)
	if len(columns) != len(want) {
		t.Errorf("Expected provisioning to be idempotent, got %d columns", len(columns))
	}
	if len(pub.Events()) != 1 {
		t.Errorf("No-op provisioning should not publish, got %d events", len(pub.Events()))
	}
}

func TestCreateColumn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, svc, pub, tenant := setup(t)
	_ = svc.ProvisionDefaults(ctx, tenant.ID)

	column, err := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{
		Name:   "  Demo Scheduled ",
		Color:  "#123456",
		Status: models.StatusContacted,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if column.Name != "Demo Scheduled" {
		t.Errorf("Expected trimmed name, got %q", column.Name)
	}
	if column.IsSystem {
		t.Error("Custom column must not be a system column")
	}
	if column.Order != 9 {
		t.Errorf("Expected order 9 (after baseline), got %d", column.Order)
	}
	if column.Pipeline != models.PipelineDefault || column.Status != models.StatusContacted {
		t.Errorf("Unexpected pair (%s,%s)", column.Pipeline, column.Status)
	}

	last, ok := pub.Last()
	if !ok || last.Action != events.ActionCreate || last.Topic != events.TopicColumn {
		t.Errorf("Expected column create event, got %+v", last)
	}
}

func TestCreateColumn_DuplicateName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, svc, pub, tenant := setup(t)
	_ = svc.ProvisionDefaults(ctx, tenant.ID)
	published := len(pub.Events())

	_, err := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "proposal"})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Expected ErrDuplicateName, got %v", err)
	}
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected a conflict error, got %v", err)
	}
	if len(pub.Events()) != published {
		t.Error("Rejected create must not publish")
	}
}

func TestCreateColumn_SameNameOtherTenant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, svc, _, tenant := setup(t)
	other := testutil.CreateTenant(t, db, "globex")

	if _, err := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "Hot"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := svc.CreateColumn(ctx, other.ID, CreateColumnRequest{Name: "Hot"}); err != nil {
		t.Fatalf("Names are unique per tenant only, got %v", err)
	}
}

func TestCreateColumn_UnknownCode(t *testing.T) {
	t.Parallel()
	_, svc, _, tenant := setup(t)

	_, err := svc.CreateColumn(context.Background(), tenant.ID, CreateColumnRequest{
		Name: "Mystery",
		Code: strPtr("does_not_exist"),
	})
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("Expected ErrUnknownTemplate, got %v", err)
	}
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected a validation error, got %v", err)
	}
}

func TestCreateColumn_CodeTakesTemplatePair(t *testing.T) {
	t.Parallel()
	_, svc, _, tenant := setup(t)

	column, err := svc.CreateColumn(context.Background(), tenant.ID, CreateColumnRequest{
		Name:   "Closed Deals",
		Code:   strPtr("sales_won"),
		Status: models.StatusLost,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if column.Pipeline != models.PipelineSales || column.Status != models.StatusConverted {
		t.Errorf("Expected (sales,converted), got (%s,%s)", column.Pipeline, column.Status)
	}
}

func TestCreateColumn_Validation(t *testing.T) {
	t.Parallel()
	_, svc, _, tenant := setup(t)
	ctx := context.Background()

	if _, err := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "   "}); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Expected ErrEmptyName, got %v", err)
	}
	if _, err := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: strings.Repeat("x", 101)}); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("Expected ErrNameTooLong, got %v", err)
	}
	if _, err := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "Odd", Status: "won"}); !errors.Is(err, ErrInvalidPair) {
		t.Errorf("Expected ErrInvalidPair, got %v", err)
	}
}

func TestCreateFromTemplate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, svc, _, tenant := setup(t)

	if _, err := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "Backlog", Order: intPtr(7)}); err != nil {
		t.Fatalf("Failed to create column: %v", err)
	}

	column, err := svc.CreateFromTemplate(ctx, tenant.ID, "support_new")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !column.IsSystem {
		t.Error("Template column should be a system column")
	}
	if column.Order != 8 {
		t.Errorf("Expected order max+1 = 8, got %d", column.Order)
	}
	if column.Code == nil || *column.Code != "support_new" {
		t.Errorf("Expected code support_new, got %v", column.Code)
	}

	_, err = svc.CreateFromTemplate(ctx, tenant.ID, "support_new")
	if !errors.Is(err, ErrDuplicateCode) {
		t.Errorf("Expected ErrDuplicateCode, got %v", err)
	}

	_, err = svc.CreateFromTemplate(ctx, tenant.ID, "nope")
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("Expected ErrUnknownTemplate, got %v", err)
	}
}

func TestCreateFromTemplate_EmptyBoardStartsAtZero(t *testing.T) {
	t.Parallel()
	_, svc, _, tenant := setup(t)

	column, err := svc.CreateFromTemplate(context.Background(), tenant.ID, "onboarding_new")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if column.Order != 0 {
		t.Errorf("Expected order 0, got %d", column.Order)
	}
}

func TestUpdateColumn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, svc, pub, tenant := setup(t)

	column, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "Warm", Color: "#111111"})

	updated, err := svc.UpdateColumn(ctx, tenant.ID, column.ID, UpdateColumnRequest{
		Name:  strPtr("Warm Leads"),
		Order: intPtr(3),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if updated.Name != "Warm Leads" || updated.Order != 3 || updated.Color != "#111111" {
		t.Errorf("Unexpected update result %+v", updated)
	}

	last, _ := pub.Last()
	if last.Action != events.ActionUpdate {
		t.Errorf("Expected update event, got %s", last.Action)
	}
}

func TestUpdateColumn_NameCollision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, svc, _, tenant := setup(t)

	_, _ = svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "One"})
	two, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "Two"})

	_, err := svc.UpdateColumn(ctx, tenant.ID, two.ID, UpdateColumnRequest{Name: strPtr("ONE")})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Expected ErrDuplicateName, got %v", err)
	}

	// renaming to its own name is fine
	if _, err := svc.UpdateColumn(ctx, tenant.ID, two.ID, UpdateColumnRequest{Name: strPtr("Two")}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestUpdateColumn_SystemColumnRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, svc, pub, tenant := setup(t)
	_ = svc.ProvisionDefaults(ctx, tenant.ID)
	published := len(pub.Events())

	system := columnByName(t, svc, tenant.ID, "Proposal")

	_, err := svc.UpdateColumn(ctx, tenant.ID, system.ID, UpdateColumnRequest{Name: strPtr("Offer"), Color: strPtr("#000000")})
	if !errors.Is(err, ErrSystemColumn) {
		t.Fatalf("Expected ErrSystemColumn, got %v", err)
	}
	if !errors.Is(err, models.ErrIntegrity) {
		t.Errorf("Expected integrity error, got %v", err)
	}

	var reloaded models.Column
	db.First(&reloaded, system.ID)
	if reloaded.Name != "Proposal" || reloaded.Color != system.Color || reloaded.Order != system.Order {
		t.Errorf("System column changed: %+v", reloaded)
	}
	if len(pub.Events()) != published {
		t.Error("Rejected update must not publish")
	}
}

func TestDeleteColumn_SystemColumnRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, svc, _, tenant := setup(t)
	_ = svc.ProvisionDefaults(ctx, tenant.ID)
	system := columnByName(t, svc, tenant.ID, "Lost")

	err := svc.DeleteColumn(ctx, tenant.ID, system.ID)
	if !errors.Is(err, ErrSystemColumn) {
		t.Fatalf("Expected ErrSystemColumn, got %v", err)
	}

	var count int64
	db.Model(&models.Column{}).Where("id = ?", system.ID).Count(&count)
	if count != 1 {
		t.Error("System column was deleted")
	}
}

func TestDeleteColumn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, svc, pub, tenant := setup(t)

	column, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "Temp"})
	if err := svc.DeleteColumn(ctx, tenant.ID, column.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var count int64
	db.Model(&models.Column{}).Where("id = ?", column.ID).Count(&count)
	if count != 0 {
		t.Error("Column still exists")
	}

	last, _ := pub.Last()
	if last.Action != events.ActionDelete {
		t.Errorf("Expected delete event, got %s", last.Action)
	}

	if err := svc.DeleteColumn(ctx, tenant.ID, column.ID); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("Expected ErrColumnNotFound on second delete, got %v", err)
	}
}

func TestDeleteColumn_InUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, svc, _, tenant := setup(t)
	user := testutil.CreateUser(t, db, tenant.ID, "owner", models.RoleSales)
	contact := testutil.CreateContact(t, db, tenant.ID, "Ana", "1", "ana@example.com")

	column, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "Busy"})
	testutil.CreateLead(t, db, tenant.ID, contact.ID, user.ID, column)

	err := svc.DeleteColumn(ctx, tenant.ID, column.ID)
	if !errors.Is(err, ErrColumnInUse) {
		t.Fatalf("Expected ErrColumnInUse, got %v", err)
	}
}

func TestGetColumn_OtherTenant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, svc, _, tenant := setup(t)
	other := testutil.CreateTenant(t, db, "globex")

	column, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "Private"})

	if _, err := svc.GetColumn(ctx, other.ID, column.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found across tenants, got %v", err)
	}
	if err := svc.DeleteColumn(ctx, other.ID, column.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found across tenants, got %v", err)
	}
}

func TestReorderColumns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, svc, pub, tenant := setup(t)

	a, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "A"})
	b, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "B"})
	c, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "C"})
	published := len(pub.Events())

	columns, err := svc.ReorderColumns(ctx, tenant.ID, []Position{
		{ID: c.ID, Order: 0},
		{ID: a.ID, Order: 1},
		{ID: b.ID, Order: 2},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got := []string{columns[0].Name, columns[1].Name, columns[2].Name}
	if strings.Join(got, ",") != "C,A,B" {
		t.Errorf("Expected C,A,B got %v", got)
	}
	if len(pub.Events()) != published+1 {
		t.Errorf("Expected exactly one reorder event, got %d", len(pub.Events())-published)
	}
}

func TestReorderColumns_AllOrNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, svc, _, tenant := setup(t)

	a, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "A"})
	b, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "B"})

	_, err := svc.ReorderColumns(ctx, tenant.ID, []Position{
		{ID: b.ID, Order: 0},
		{ID: a.ID, Order: 1},
		{ID: 9999, Order: 2},
	})
	if !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("Expected ErrColumnNotFound, got %v", err)
	}

	columns, _ := svc.ListColumns(ctx, tenant.ID)
	if columns[0].ID != a.ID || columns[0].Order != 0 || columns[1].Order != 1 {
		t.Errorf("Partial reorder applied: %+v %+v", columns[0], columns[1])
	}
}

func TestReorderColumns_SystemColumnKeepsPosition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, svc, _, tenant := setup(t)
	_ = svc.ProvisionDefaults(ctx, tenant.ID)
	custom, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "Custom"})
	newCol := columnByName(t, svc, tenant.ID, "New")

	// listing a system lane at its current position is allowed
	if _, err := svc.ReorderColumns(ctx, tenant.ID, []Position{
		{ID: newCol.ID, Order: newCol.Order},
		{ID: custom.ID, Order: 20},
	}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err := svc.ReorderColumns(ctx, tenant.ID, []Position{
		{ID: custom.ID, Order: 30},
		{ID: newCol.ID, Order: 99},
	})
	if !errors.Is(err, ErrSystemColumn) {
		t.Fatalf("Expected ErrSystemColumn, got %v", err)
	}

	reloaded, _ := svc.GetColumn(ctx, tenant.ID, custom.ID)
	if reloaded.Order != 20 {
		t.Errorf("Custom column moved despite rejected batch: order %d", reloaded.Order)
	}
}

func TestReorderColumns_DuplicateEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, svc, _, tenant := setup(t)
	a, _ := svc.CreateColumn(ctx, tenant.ID, CreateColumnRequest{Name: "A"})

	_, err := svc.ReorderColumns(ctx, tenant.ID, []Position{{ID: a.ID, Order: 1}, {ID: a.ID, Order: 2}})
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Errorf("Expected ErrDuplicateEntry, got %v", err)
	}
}

// A lost race on the unique indexes surfaces as the conflict of the index hit.
func TestInsertColumn_UniqueRaceReportsIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, svc, _, tenant := setup(t)

	won, err := svc.CreateFromTemplate(ctx, tenant.ID, "sales_won")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	insert := func(c *models.Column) error {
		return db.Transaction(func(tx *gorm.DB) error {
			return insertColumn(tx, c)
		})
	}

	err = insert(&models.Column{
		TenantID: tenant.ID,
		Name:     "Another name",
		Code:     won.Code,
		Pipeline: won.Pipeline,
		Status:   won.Status,
	})
	if !errors.Is(err, ErrDuplicateCode) {
		t.Errorf("Expected ErrDuplicateCode for a taken code, got %v", err)
	}

	err = insert(&models.Column{
		TenantID: tenant.ID,
		Name:     won.Name,
		Code:     strPtr("custom_code"),
		Pipeline: won.Pipeline,
		Status:   won.Status,
	})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Expected ErrDuplicateName for a taken name, got %v", err)
	}

	err = insert(&models.Column{
		TenantID: tenant.ID,
		Name:     won.Name,
		Pipeline: won.Pipeline,
		Status:   won.Status,
	})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Expected ErrDuplicateName without a code, got %v", err)
	}

	var count int64
	db.Model(&models.Column{}).Where("tenant_id = ?", tenant.ID).Count(&count)
	if count != 1 {
		t.Errorf("Expected only the original lane, got %d", count)
	}
}
