package apiclient

import (
	"context"
	"net/url"
	"strconv"
)

type Resource string

// Resources
const (
	Students      Resource = "students"
	Teachers      Resource = "teachers"
	Subjects      Resource = "subjects"
	Courses       Resource = "courses"
	Groups        Resource = "groups"
	Assignments   Resource = "assignments"
	Attendance    Resource = "attendance"
	Announcements Resource = "announcements"
	Notifications Resource = "notifications"
)

var AllResources = []Resource{
	Students, Teachers, Subjects, Courses, Groups, Assignments, Attendance, Announcements, Notifications,
}

// ParseResource parses a resource name.
func ParseResource(name string) (Resource, bool) {
	for _, res := range AllResources {
		if string(res) == name {
			return res, true
		}
	}
	return "", false
}

type (
	// Record is a resource item. Its fields are owned by the API.
	Record map[string]interface{}

	ListParams struct {
		Page    int
		Limit   int
		Search  string
		Sort    string
		Filters map[string]string
	}
)

func (p ListParams) Values() url.Values {
	q := make(url.Values)
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	for k, v := range p.Filters {
		if v != "" {
			q.Set(k, v)
		}
	}
	return q
}

// ID returns the record id, `_id` or `id`.
func (r Record) ID() string {
	for _, key := range []string{"_id", "id"} {
		if id, ok := r[key].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

// String returns a field as a string, "" if missing.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (c *Client) List(ctx context.Context, res Resource, params ListParams) ([]Record, *Pagination, error) {
	return listResources[Record](ctx, c, string(res), params.Values())
}

func (c *Client) Get(ctx context.Context, res Resource, id string) (Record, error) {
	rec, err := getResource[Record](ctx, c, string(res)+"/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	return *rec, nil
}

func (c *Client) Create(ctx context.Context, res Resource, body Record) (Record, error) {
	rec, err := createResource[Record](ctx, c, string(res), body)
	if err != nil {
		return nil, err
	}
	return *rec, nil
}

func (c *Client) Update(ctx context.Context, res Resource, id string, body Record) (Record, error) {
	rec, err := updateResource[Record](ctx, c, string(res)+"/"+url.PathEscape(id), body)
	if err != nil {
		return nil, err
	}
	return *rec, nil
}

func (c *Client) Delete(ctx context.Context, res Resource, id string) error {
	return deleteResource(ctx, c, string(res)+"/"+url.PathEscape(id))
}

func (c *Client) DashboardStats(ctx context.Context) (Record, error) {
	rec, err := getResource[Record](ctx, c, "dashboard/stats")
	if err != nil {
		return nil, err
	}
	return *rec, nil
}

// UnreadNotifications returns the number of unread notifications of the current user.
func (c *Client) UnreadNotifications(ctx context.Context) (int, error) {
	var data struct {
		Count int `json:"count"`
	}
	if _, err := c.get(ctx, string(Notifications)+"/unread-count", nil, &data); err != nil {
		return 0, err
	}
	return data.Count, nil
}

// Generic helpers

func getResource[T any](ctx context.Context, c *Client, path string) (*T, error) {
	var result T
	if _, err := c.get(ctx, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func listResources[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, *Pagination, error) {
	var results []T
	pagination, err := c.get(ctx, path, query, &results)
	if err != nil {
		return nil, nil, err
	}
	return results, pagination, nil
}

func createResource[T any](ctx context.Context, c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func updateResource[T any](ctx context.Context, c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.put(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func deleteResource(ctx context.Context, c *Client, path string) error {
	return c.delete(ctx, path, nil)
}
