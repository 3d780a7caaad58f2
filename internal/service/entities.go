package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"crew-import/internal/crew"
	"crew-import/internal/models"

	"github.com/spf13/cast"
)

const (
	EntityEmployees = "employees"
	EntityStaff     = "staff"
	EntityEquipment = "equipment"
	EntityJobs      = "jobs"
	EntityTasks     = "tasks"
	EntityCustomers = "customers"
)

// entityOrder is the catalog order shown to users.
var entityOrder = []string{EntityEmployees, EntityStaff, EntityEquipment, EntityJobs, EntityTasks, EntityCustomers}

var (
	nameField     = Field{Label: "Name First and Last", Aliases: []string{"Name", "Full Name"}}
	emailField    = Field{Label: "Email", Aliases: []string{"E-mail", "Email Address"}}
	passwordField = Field{Label: "Password"}
	employeeField = Field{Label: "Employee ID", Aliases: []string{"ID", "Employee Number"}}
	workerField   = Field{Label: "Name First and Last", Aliases: []string{"Name", "Employee Name", "Full Name"}}
	customerField = Field{Label: "Name First and Last", Aliases: []string{"Name", "Customer Name", "Full Name"}}
	companyField  = Field{Label: "Company", Aliases: []string{"Company Name"}}
	equipField    = Field{Label: "Equipment name", Aliases: []string{"Name", "Equipment"}}
	jobNameField  = Field{Label: "Job Name", Aliases: []string{"Name", "Job"}}
	taskNameField = Field{Label: "Task Name", Aliases: []string{"Name", "Task"}}
)

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// responseID digs the created record id out of {"data":{"id"}} or {"id"}.
func responseID(response interface{}) interface{} {
	body, ok := response.(map[string]interface{})
	if !ok {
		return nil
	}
	if data, ok := body["data"].(map[string]interface{}); ok && data["id"] != nil {
		return data["id"]
	}
	return body["id"]
}

func rowEmail(row models.Row) string {
	return emailField.Value(row)
}

type EmployeePayload struct {
	Name             string  `json:"name"`
	AccountingID     string  `json:"accounting_id"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	PhoneCountryCode *string `json:"phone_country_code"`
	Pin              *string `json:"pin"`
	Role             string  `json:"role"`
	Type             string  `json:"type"`
	Employee         int     `json:"employee"`
	Foreman          int     `json:"foreman"`
	Tracking         int     `json:"tracking"`
	Active           int     `json:"active"`
	IsSuperAdmin     int     `json:"is_super_admin"`
	CompanyID        int64   `json:"company_id"`
}

func employeesEntity() Entity[EmployeePayload] {
	return Entity[EmployeePayload]{
		Schema: models.EntitySchema{
			Key:   EntityEmployees,
			Label: "Employees",
			Name:  "Employees and Foreman",
			Description: []string{
				"Employees and Foreman are people that can be",
				"scheduled to job events and can keep time.",
				"Foreman can also approve time for others.",
			},
			Filename: "employees_and_foreman_template.csv",
			Required: []string{"Name First and Last", "Employee ID"},
			Optional: []string{"Email", "Cell Phone", "PIN", "Foreman", "Tracking", "Active"},
		},
		Endpoint: "/api/users",
		Required: []Field{workerField, employeeField},
		Key: func(row models.Row) string {
			return dedupKey(workerField.Value(row), employeeField.Value(row))
		},
		Email: rowEmail,
		Build: func(_ context.Context, b *Batch, row models.Row) (EmployeePayload, error) {
			phone := NormalizePhone(ExtractField(row, "Cell Phone", "Phone", "Mobile", "Phone Number"), b.Defaults.PhoneCountryCode)
			active := true
			if raw := ExtractField(row, "Active"); raw != "" {
				active = ParseYes(raw)
			}
			payload := EmployeePayload{
				Name:         workerField.Value(row),
				AccountingID: employeeField.Value(row),
				Email:        optional(rowEmail(row)),
				Phone:        optional(phone.Number),
				Pin:          optional(ExtractField(row, "PIN")),
				Role:         "employee",
				Type:         "user",
				Employee:     1,
				Foreman:      flag(ParseYes(ExtractField(row, "Foreman"))),
				Tracking:     flag(ParseYes(ExtractField(row, "Tracking", "GPS Tracking"))),
				Active:       flag(active),
				CompanyID:    b.CompanyFor(row),
			}
			if phone.Number != "" {
				payload.PhoneCountryCode = optional(phone.CountryCode)
			}
			return payload, nil
		},
	}
}

type StaffPayload struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Role           string  `json:"role"`
	Employee       int     `json:"employee"`
	Active         int     `json:"active"`
	TimeClockLevel int     `json:"time_clock_level"`
	SchedulerLevel int     `json:"scheduler_level"`
	MetricsLevel   int     `json:"metrics_level"`
	MetricsEnabled int     `json:"metrics_enabled"`
	AccountingID   *string `json:"accounting_id"`
	EmployeeID     *int64  `json:"employee_id"`
	CompanyID      int64   `json:"company_id"`
	Type           string  `json:"type"`
	IsSuperAdmin   int     `json:"is_super_admin"`
	Phone          string  `json:"phone,omitempty"`
}

func staffEntity(defaults Defaults) Entity[StaffPayload] {
	minPassword := defaults.PasswordMin
	if minPassword <= 0 {
		minPassword = 6
	}
	return Entity[StaffPayload]{
		Schema: models.EntitySchema{
			Key:   EntityStaff,
			Label: "Staff",
			Name:  "Staff",
			Description: []string{
				"Staff are people with special access privileges.",
				"They can manage schedules, approve time, and more.",
			},
			Filename: "staff_template.csv",
			Required: []string{"Name First and Last", "Email", "Password"},
			Optional: []string{"Employee ID", "Phone Number", "Payroll", "Jobs", "Users", "Analysis"},
		},
		Endpoint:    "/api/users",
		Required:    []Field{nameField, emailField, passwordField},
		CheckHeader: true,
		Rules:       []Rule{MinLength(passwordField, minPassword)},
		Key: func(row models.Row) string {
			return dedupKey(rowEmail(row))
		},
		Email: rowEmail,
		Prepare: func(ctx context.Context, b *Batch) {
			known, err := b.Client.ExistingEmails(ctx)
			if err != nil {
				b.Logger.WithError(err).Warn("Failed to preload existing emails")
				return
			}
			b.Known = known
		},
		Check: func(b *Batch, row models.Row, line int) *models.RowOutcome {
			email := rowEmail(row)
			existing, ok := b.Known[strings.ToLower(email)]
			if !ok {
				return nil
			}
			message := duplicateEmailMessage(email, line)
			if existing.Name != "" {
				owner := existing.Name
				if existing.ID != nil {
					owner += " #" + cast.ToString(existing.ID)
				}
				message = fmt.Sprintf("Duplicate email: %q already exists in the system (belongs to %s). Skipped row %d.", email, owner, line)
			}
			return &models.RowOutcome{
				Status:     models.OutcomeUpstreamError,
				Line:       line,
				StatusCode: 409,
				Kind:       models.ErrorKindDuplicateEmail,
				Error:      message,
			}
		},
		Build: func(_ context.Context, b *Batch, row models.Row) (StaffPayload, error) {
			metrics := ParseLevel(ExtractField(row, "Analysis", "Metrics", "Reports"))
			return StaffPayload{
				Name:           nameField.Value(row),
				Email:          rowEmail(row),
				Password:       passwordField.Value(row),
				Role:           "user",
				Employee:       0,
				Active:         1,
				TimeClockLevel: ParseLevel(ExtractField(row, "Payroll", "Time Clock", "TimeClock")),
				SchedulerLevel: ParseLevel(ExtractField(row, "Jobs", "Scheduler", "Scheduling")),
				MetricsLevel:   metrics,
				MetricsEnabled: flag(metrics > 0),
				AccountingID:   optional(ExtractField(row, "Employee ID", "ID", "Staff ID")),
				CompanyID:      b.CompanyFor(row),
				Type:           "user",
				IsSuperAdmin:   0,
				Phone:          ExtractField(row, "Phone Number", "Phone", "Mobile"),
			}, nil
		},
		Created: func(b *Batch, row models.Row, response interface{}) {
			b.Known[strings.ToLower(rowEmail(row))] = crew.User{
				ID:    responseID(response),
				Name:  nameField.Value(row),
				Email: rowEmail(row),
			}
		},
	}
}

type EquipmentPayload struct {
	Name         string  `json:"name"`
	CompanyID    int64   `json:"company_id"`
	SerialNumber *string `json:"serial_number,omitempty"`
	AccountingID *string `json:"accounting_id,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	Active       int     `json:"active"`
}

func equipmentEntity() Entity[EquipmentPayload] {
	return Entity[EquipmentPayload]{
		Schema: models.EntitySchema{
			Key:   EntityEquipment,
			Label: "Equipment",
			Name:  "Equipment",
			Description: []string{
				"Equipment is any machinery you want to schedule",
				"alongside your Employees, Foreman, and Staff.",
			},
			Filename: "equipment_template.csv",
			Required: []string{"Equipment name"},
			Optional: []string{"ID", "Serial Number", "Notes"},
		},
		Endpoint: "/api/equipment",
		Required: []Field{equipField},
		Key: func(row models.Row) string {
			return dedupKey(equipField.Value(row))
		},
		Build: func(_ context.Context, b *Batch, row models.Row) (EquipmentPayload, error) {
			return EquipmentPayload{
				Name:         equipField.Value(row),
				CompanyID:    b.CompanyFor(row),
				SerialNumber: optional(ExtractField(row, "Serial Number", "Serial", "VIN")),
				AccountingID: optional(ExtractField(row, "ID", "Equipment ID")),
				Notes:        optional(ExtractField(row, "Notes", "Description")),
				Active:       1,
			}, nil
		},
	}
}

type JobPayload struct {
	CompanyID int64   `json:"company_id"`
	Active    int     `json:"active"`
	Name      string  `json:"name"`
	Number    string  `json:"number"`
	DeletedAt *string `json:"deleted_at"`
	Color     string  `json:"color"`
	Address   *string `json:"address,omitempty"`
	City      *string `json:"city,omitempty"`
	State     *string `json:"state,omitempty"`
	Zip       *string `json:"zip,omitempty"`
}

func jobsEntity() Entity[JobPayload] {
	return Entity[JobPayload]{
		Schema: models.EntitySchema{
			Key:         EntityJobs,
			Label:       "Jobs",
			Name:        "Jobs",
			Description: []string{"Job sites you’ll be working at."},
			Filename:    "jobs_template.csv",
			Required:    []string{"Job Name"},
			Optional:    []string{"Job Number", "Color", "Address", "City", "State", "Zip"},
		},
		Endpoint: "/api/jobs",
		Required: []Field{jobNameField},
		Key: func(row models.Row) string {
			return dedupKey(jobNameField.Value(row), ExtractField(row, "Job Number", "Number"))
		},
		Build: func(_ context.Context, b *Batch, row models.Row) (JobPayload, error) {
			color := ExtractField(row, "Color", "Colour")
			if color == "" {
				color = b.Defaults.JobColor
			}
			if color != "" && !strings.HasPrefix(color, "#") {
				color = "#" + color
			}
			return JobPayload{
				CompanyID: b.CompanyFor(row),
				Active:    1,
				Name:      jobNameField.Value(row),
				Number:    ExtractField(row, "Job Number", "Number"),
				Color:     color,
				Address:   optional(ExtractField(row, "Address", "Street")),
				City:      optional(ExtractField(row, "City")),
				State:     optional(ExtractField(row, "State")),
				Zip:       optional(ExtractField(row, "Zip", "Zip Code", "Postal Code")),
			}, nil
		},
	}
}

type TaskPayload struct {
	CompanyID      int64    `json:"company_id"`
	Name           string   `json:"name"`
	CostCode       string   `json:"cost_code"`
	Unit           *string  `json:"unit"`
	EstimatedQty   *float64 `json:"estimated_qty"`
	EstimatedHours *float64 `json:"estimated_hours"`
	CountOvertime  int      `json:"count_overtime"`
	TaskCategoryID *int     `json:"task_category_id"`
	Active         int      `json:"active"`
}

func optionalNumber(value string) *float64 {
	if value == "" {
		return nil
	}
	n := ParseNumber(value, 0)
	return &n
}

func tasksEntity() Entity[TaskPayload] {
	return Entity[TaskPayload]{
		Schema: models.EntitySchema{
			Key:         EntityTasks,
			Label:       "Tasks",
			Name:        "Tasks",
			Description: []string{"Tasks assigned to jobs."},
			Filename:    "tasks_template.csv",
			Required:    []string{"Task Name"},
			Optional:    []string{"Cost Code", "Unit", "OT Exempt Task", "Estimated Qty", "Estimated Hours"},
		},
		Endpoint: "/api/default-tasks",
		Required: []Field{taskNameField},
		Key: func(row models.Row) string {
			return dedupKey(taskNameField.Value(row))
		},
		Build: func(_ context.Context, b *Batch, row models.Row) (TaskPayload, error) {
			payload := TaskPayload{
				CompanyID:      b.CompanyFor(row),
				Name:           taskNameField.Value(row),
				CostCode:       ExtractField(row, "Cost Code", "Code"),
				Unit:           optional(ExtractField(row, "Unit", "Units")),
				EstimatedQty:   optionalNumber(ExtractField(row, "Estimated Qty", "Estimated Quantity")),
				EstimatedHours: optionalNumber(ExtractField(row, "Estimated Hours")),
				CountOvertime:  flag(!ParseYes(ExtractField(row, "OT Exempt Task", "OT Exempt"))),
				Active:         1,
			}
			if id := ParseInt(ExtractField(row, "Task Category ID", "Category ID"), 0); id > 0 {
				payload.TaskCategoryID = &id
			}
			return payload, nil
		},
	}
}

type CustomerPayload struct {
	Name              string  `json:"name"`
	CompanyID         int64   `json:"company_id"`
	CustomerCompanyID *int64  `json:"customer_company_id"`
	Active            int     `json:"active"`
	Role              string  `json:"role"`
	Email             *string `json:"email"`
	Pin               *string `json:"pin"`
	Type              string  `json:"type"`
	PhoneCountryCode  *string `json:"phone_country_code"`
	PhoneNumber       *string `json:"phone_number"`
	Company           *string `json:"company"`
	ConsentedToSMSAt  *string `json:"consented_to_sms_at"`
}

func customersEntity() Entity[CustomerPayload] {
	return Entity[CustomerPayload]{
		Schema: models.EntitySchema{
			Key:         EntityCustomers,
			Label:       "Customers",
			Name:        "Customers",
			Description: []string{"Customers can be linked to jobs for filtering."},
			Filename:    "customers_template.csv",
			Required:    []string{"Name First and Last"},
			Optional:    []string{"Role", "Email", "Company", "Cell Phone"},
		},
		Endpoint: "/api/customers",
		Required: []Field{customerField},
		Key: func(row models.Row) string {
			return dedupKey(customerField.Value(row), rowEmail(row), companyField.Value(row))
		},
		Email: rowEmail,
		Build: func(ctx context.Context, b *Batch, row models.Row) (CustomerPayload, error) {
			company := companyField.Value(row)
			role := ExtractField(row, "Role")
			if role == "" {
				role = "Customer"
			}
			payload := CustomerPayload{
				Name:      customerField.Value(row),
				CompanyID: b.CompanyFor(row),
				Active:    1,
				Role:      role,
				Email:     optional(rowEmail(row)),
				Type:      "customer",
				Company:   optional(company),
			}

			customerCompanyID := b.CustomerCompany(ctx, company)
			if customerCompanyID == 0 {
				customerCompanyID = b.Defaults.CustomerCompanyID
			}
			if customerCompanyID > 0 {
				payload.CustomerCompanyID = &customerCompanyID
			}

			phone := NormalizePhone(ExtractField(row, "Cell Phone", "Phone", "Cell Number", "Mobile"), b.Defaults.PhoneCountryCode)
			if phone.Number != "" {
				payload.PhoneNumber = optional(phone.Number)
				payload.PhoneCountryCode = optional(phone.CountryCode)
				payload.ConsentedToSMSAt = optional(b.Now().UTC().Format("2006-01-02 15:04:05"))
			}
			return payload, nil
		},
	}
}

// Registry maps entity keys to their pipelines.
type Registry struct {
	importers map[string]Importer
}

func NewRegistry(defaults Defaults, summarizer *Summarizer) *Registry {
	return &Registry{importers: map[string]Importer{
		EntityEmployees: NewPipeline(employeesEntity(), defaults, summarizer),
		EntityStaff:     NewPipeline(staffEntity(defaults), defaults, summarizer),
		EntityEquipment: NewPipeline(equipmentEntity(), defaults, summarizer),
		EntityJobs:      NewPipeline(jobsEntity(), defaults, summarizer),
		EntityTasks:     NewPipeline(tasksEntity(), defaults, summarizer),
		EntityCustomers: NewPipeline(customersEntity(), defaults, summarizer),
	}}
}

func (r *Registry) Get(key string) (Importer, error) {
	importer, ok := r.importers[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return nil, unknownEntity(key)
	}
	return importer, nil
}

func (r *Registry) Schema(key string) (models.EntitySchema, error) {
	importer, err := r.Get(key)
	if err != nil {
		return models.EntitySchema{}, err
	}
	return importer.Schema(), nil
}

// Schemas lists every registered entity, catalog entries first.
func (r *Registry) Schemas() []models.EntitySchema {
	rank := make(map[string]int, len(entityOrder))
	for i, key := range entityOrder {
		rank[key] = i
	}
	keys := make([]string, 0, len(r.importers))
	for key := range r.importers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})

	schemas := make([]models.EntitySchema, 0, len(keys))
	for _, key := range keys {
		schemas = append(schemas, r.importers[key].Schema())
	}
	return schemas
}
