package client

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestJSONAPIResources_Get(t *testing.T) {
	t.Parallel()

	server := newFarmServer(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "GET", request.Method)

		switch request.URL.Path {
		case "/api/log/activity":
			assert.Equal(t, "done", request.URL.Query().Get("filter[status]"))
			assert.Equal(t, "Bearer test-token", request.Header.Get("Authorization"))

			writeJSON(writer, http.StatusOK, map[string]interface{}{
				"data": []map[string]interface{}{
					{"id": "a1", "type": "log--activity", "attributes": map[string]interface{}{"name": "Mow"}},
				},
				"links": map[string]interface{}{
					"self": map[string]interface{}{"href": "https://farm.example.com/api/log/activity"},
					"next": map[string]interface{}{"href": "https://farm.example.com/api/log/activity?page%5Boffset%5D=50"},
				},
			})
		case "/api/user/user":
			writeJSON(writer, http.StatusOK, map[string]interface{}{"data": []interface{}{}})
		default:
			t.Errorf("unexpected path %s", request.URL.Path)
		}
	})
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL, farmos.APIStyleJSONAPI)

	t.Run("one page with cursor", func(t *testing.T) {
		t.Parallel()

		page, err := client.Log().Get(context.Background(), "activity", farmos.Filter("status", "done", farmos.OpEqual))
		require.NoError(t, err)
		require.Len(t, page.Records, 1)
		assert.Equal(t, "a1", page.Records[0].ID())
		assert.Equal(t, "Mow", page.Records[0].Attributes()["name"])
		assert.True(t, page.HasNext())
		assert.Equal(t, "/api/log/activity?page%5Boffset%5D=50", page.NextCursor)
		assert.Equal(t, "https://farm.example.com/api/log/activity", page.Links.Self)
	})

	t.Run("bundle defaults to entity type", func(t *testing.T) {
		t.Parallel()

		page, err := client.Resource().Get(context.Background(), "user", "", nil)
		require.NoError(t, err)
		assert.Empty(t, page.Records)
		assert.False(t, page.HasNext())
	})
}

func TestJSONAPIResources_GetID(t *testing.T) {
	t.Parallel()

	server := newFarmServer(t, func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/api/asset/animal/abc":
			writeJSON(writer, http.StatusOK, map[string]interface{}{
				"data": map[string]interface{}{
					"id":         "abc",
					"type":       "asset--animal",
					"attributes": map[string]interface{}{"include": request.URL.Query().Get("include")},
				},
			})
		default:
			writeJSON(writer, http.StatusNotFound, map[string]interface{}{
				"errors": []map[string]interface{}{{"status": "404", "title": "Not Found", "detail": "missing"}},
			})
		}
	})
	defer server.Close()

	client := newTestClient(t, server.URL, farmos.APIStyleJSONAPI)

	record, err := client.Asset().GetID(context.Background(), "animal", "abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "asset--animal", record.Type())
	assert.Empty(t, record.Attributes()["include"])

	record, err = client.Asset().GetID(context.Background(), "animal", "abc", farmos.Filters{"include": {"parent"}})
	require.NoError(t, err)
	assert.Equal(t, "parent", record.Attributes()["include"])

	_, err = client.Asset().GetID(context.Background(), "animal", "missing", nil)
	require.ErrorIs(t, err, farmos.ErrNotFound)
	assert.True(t, farmos.IsNotFound(err))

	_, err = client.Asset().GetID(context.Background(), "animal", "", nil)
	require.ErrorIs(t, err, farmos.ErrIDRequired)
}

func TestJSONAPIResources_Iterate(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := newFarmServer(t, func(writer http.ResponseWriter, request *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/api/taxonomy_term/plant_type", request.URL.Path)

		offset := request.URL.Query().Get("page[offset]")

		records := map[string][]map[string]interface{}{
			"":  {{"id": "1"}, {"id": "2"}},
			"2": {{"id": "3"}, {"id": "4"}},
			"4": {{"id": "5"}},
		}[offset]

		links := map[string]interface{}{}
		if offset != "4" {
			next := map[string]string{"": "2", "2": "4"}[offset]
			links["next"] = map[string]interface{}{
				"href": "http://other.example/api/taxonomy_term/plant_type?page%5Boffset%5D=" + next,
			}
		}

		writeJSON(writer, http.StatusOK, map[string]interface{}{"data": records, "links": links})
	})
	defer server.Close()

	client := newTestClient(t, server.URL, farmos.APIStyleJSONAPI)

	var ids []string

	for record, err := range client.Term().Iterate(context.Background(), "plant_type", nil).Seq() {
		require.NoError(t, err)

		ids = append(ids, record.ID())
	}

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids)
	assert.Equal(t, int32(3), requests.Load())
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestJSONAPIResources_Send(t *testing.T) {
	t.Parallel()

	server := newFarmServer(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "application/vnd.api+json", request.Header.Get("Content-Type"))

		body := decodeBody(t, request)
		data, ok := body["data"].(map[string]interface{})
		if !assert.True(t, ok) {
			return
		}

		assert.Equal(t, "log--observation", data["type"])

		switch request.Method {
		case http.MethodPost:
			assert.Equal(t, "/api/log/observation", request.URL.Path)
			assert.NotContains(t, data, "id")

			data["id"] = "new-id"
			writeJSON(writer, http.StatusCreated, map[string]interface{}{"data": data})
		case http.MethodPatch:
			assert.Equal(t, "/api/log/observation/existing", request.URL.Path)
			assert.Equal(t, "existing", data["id"])

			writeJSON(writer, http.StatusOK, map[string]interface{}{"data": data})
		default:
			t.Errorf("unexpected method %s", request.Method)
		}
	})
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL, farmos.APIStyleJSONAPI)

	t.Run("create", func(t *testing.T) {
		t.Parallel()

		payload := farmos.Record{"attributes": map[string]any{"name": "Scouting"}}

		record, err := client.Log().Send(context.Background(), "observation", payload)
		require.NoError(t, err)
		assert.Equal(t, "new-id", record.ID())
		assert.NotContains(t, payload, "type")
	})

	t.Run("update", func(t *testing.T) {
		t.Parallel()

		payload := farmos.Record{"id": "existing", "attributes": map[string]any{"status": "done"}}

		record, err := client.Log().Send(context.Background(), "observation", payload)
		require.NoError(t, err)
		assert.Equal(t, "existing", record.ID())
		assert.Len(t, payload, 2)
	})
}

func TestJSONAPIResources_Delete(t *testing.T) {
	t.Parallel()

	server := newFarmServer(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "DELETE", request.Method)
		assert.Equal(t, "/api/log/activity/a1", request.URL.Path)
		writer.WriteHeader(http.StatusNoContent)
	})
	defer server.Close()

	client := newTestClient(t, server.URL, farmos.APIStyleJSONAPI)

	resp, err := client.Log().Delete(context.Background(), "activity", "a1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestJSONAPIResources_AreaAndStickyFilters(t *testing.T) {
	t.Parallel()

	server := newFarmServer(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/api/asset/land", request.URL.Path)
		assert.Equal(t, "active", request.URL.Query().Get("filter[status]"))
		assert.Equal(t, "10", request.URL.Query().Get("page[limit]"))

		writeJSON(writer, http.StatusOK, map[string]interface{}{"data": []interface{}{}})
	})
	defer server.Close()

	client := newTestClient(t, server.URL, farmos.APIStyleJSONAPI)

	_, err := client.Area().Get(context.Background(), "", farmos.And(
		farmos.Filter("status", "active", farmos.OpEqual),
		farmos.PageLimit(10),
	))
	require.NoError(t, err)

	sticky := NewJSONAPIResources(client.Session(), nil).WithFilters(farmos.And(
		farmos.Filter("status", "archived", farmos.OpEqual),
		farmos.PageLimit(10),
	))

	_, err = sticky.Get(context.Background(), "asset", "land", farmos.Filter("status", "active", farmos.OpEqual))
	require.NoError(t, err)
}

func TestJSONAPIResources_RequiresAuthentication(t *testing.T) {
	t.Parallel()

	server := newFarmServer(t, func(writer http.ResponseWriter, request *http.Request) {
		t.Errorf("unexpected request %s", request.URL.Path)
	})
	defer server.Close()

	client, err := New(context.Background(), &farmos.Config{Hostname: server.URL})
	require.NoError(t, err)
	assert.False(t, client.IsAuthenticated())

	_, err = client.Log().Get(context.Background(), "activity", nil)
	require.ErrorIs(t, err, farmos.ErrNotAuthenticated)
}
