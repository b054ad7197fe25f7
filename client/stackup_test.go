package stackup

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /stacks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"stack":"demo","services":["db","web"]}`)
	})
	mux.HandleFunc("GET /stacks/demo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"stack": "demo",
			"result": {"stack":"demo","ok":true,"states":{"db":"ready","web":"ready"}},
			"runtime": {"db":{"exists":true,"running":true},"web":{"exists":true,"running":true}}
		}`)
	})
	mux.HandleFunc("DELETE /stacks/demo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stack":"demo","ok":true,"states":{"db":"stopped","web":"stopped"}}`)
	})
	mux.HandleFunc("GET /stacks/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"unknown stack nope"}`)
	})
	mux.HandleFunc("GET /stacks/demo/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		frames := []string{
			`{"seq":1,"type":"service.starting","service":"db"}`,
			`{"seq":2,"type":"service.failed","service":"db","status":"failed","error":"boom"}`,
			`{"seq":3,"type":"stack.failing","stack":"demo"}`,
		}
		for i, data := range frames {
			fmt.Fprintf(w, "id: %d\nevent: x\ndata: %s\n\n", i+1, data)
			flusher.Flush()
		}
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_CreateStack(t *testing.T) {
	c := New(newFakeServer(t).URL)

	created, err := c.CreateStack(context.Background(), []byte(`{"name":"demo","services":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "demo", created.Stack)
	assert.Equal(t, []string{"db", "web"}, created.Services)
}

func TestClient_GetStack(t *testing.T) {
	c := New(newFakeServer(t).URL)

	view, err := c.GetStack(context.Background(), "demo")
	require.NoError(t, err)
	require.NotNil(t, view.Result)
	assert.True(t, view.Result.OK)
	assert.Equal(t, "ready", view.Result.States["web"])
	assert.True(t, view.Runtime["db"].Running)
}

func TestClient_DeleteStack(t *testing.T) {
	c := New(newFakeServer(t).URL)

	res, err := c.DeleteStack(context.Background(), "demo")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "stopped", res.States["db"])
}

func TestClient_APIError(t *testing.T) {
	c := New(newFakeServer(t).URL)

	_, err := c.GetStack(context.Background(), "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "unknown stack")
}

func TestClient_Events(t *testing.T) {
	c := New(newFakeServer(t).URL)

	ch, err := c.Events(context.Background(), "demo", 0)
	require.NoError(t, err)

	var types []string
	for ev := range ch {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{
		EventServiceStarting,
		EventServiceFailed,
		EventStackFailing,
	}, types)
}

func TestClient_WaitUpReportsFailures(t *testing.T) {
	c := New(newFakeServer(t).URL)

	err := c.WaitUp(context.Background(), "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `service "db"`)
	assert.Contains(t, err.Error(), "boom")
}
