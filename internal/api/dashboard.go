package api

import (
	"html/template"
	"net/http"

	"github.com/vin-jex/queuectl/internal/queue"
	"github.com/vin-jex/queuectl/internal/store"
)

const dashboardJobLimit = 50

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>queuectl</title>
<style>
body { font-family: sans-serif; margin: 2rem; background: #fafafa; color: #222; }
.cards { display: flex; gap: 1rem; flex-wrap: wrap; }
.card { background: #fff; border: 1px solid #ddd; border-radius: 6px; padding: 1rem 1.5rem; min-width: 8rem; }
.card .value { font-size: 1.8rem; font-weight: bold; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; background: #fff; }
th, td { border: 1px solid #ddd; padding: 0.4rem 0.6rem; text-align: left; font-size: 0.9rem; }
th { background: #eee; }
code { white-space: pre-wrap; }
section { margin-top: 2rem; }
input { padding: 0.4rem; width: 18rem; }
</style>
</head>
<body>
<h1>queuectl</h1>

<div class="cards">
{{range .States}}<div class="card"><div>{{.Name}}</div><div class="value">{{.Count}}</div></div>
{{end}}<div class="card"><div>dlq</div><div class="value">{{.Status.DeadLettered}}</div></div>
<div class="card"><div>workers</div><div class="value">{{.Status.Workers}}</div></div>
</div>

<section>
<h2>Enqueue</h2>
<input id="job-id" placeholder="id (optional)">
<input id="job-command" placeholder="command, e.g. echo hello">
<button onclick="enqueueJob()">Enqueue</button>
<div id="enqueue-error"></div>
</section>

<section>
<h2>Jobs</h2>
<table>
<tr><th>ID</th><th>Command</th><th>State</th><th>Attempts</th><th>Last error</th><th>Updated</th></tr>
{{range .Jobs}}<tr><td>{{.ID}}</td><td><code>{{.Command}}</code></td><td>{{.State}}</td><td>{{.Attempts}}/{{.MaxRetries}}</td><td><code>{{.LastError}}</code></td><td>{{.UpdatedAt.Format "2006-01-02 15:04:05"}}</td></tr>
{{else}}<tr><td colspan="6">no jobs</td></tr>
{{end}}</table>
</section>

<section>
<h2>Dead letter queue</h2>
<table>
<tr><th>ID</th><th>Command</th><th>Attempts</th><th>Last error</th><th>Failed</th><th></th></tr>
{{range .DLQ}}<tr><td>{{.ID}}</td><td><code>{{.Command}}</code></td><td>{{.Attempts}}</td><td><code>{{.LastError}}</code></td><td>{{.FailedAt.Format "2006-01-02 15:04:05"}}</td><td><button data-id="{{.ID}}" onclick="retryJob(this.dataset.id)">Retry</button></td></tr>
{{else}}<tr><td colspan="6">empty</td></tr>
{{end}}</table>
</section>

<script>
async function enqueueJob() {
  const body = { command: document.getElementById("job-command").value };
  const id = document.getElementById("job-id").value;
  if (id) { body.id = id; }
  const response = await fetch("/api/jobs", { method: "POST", headers: { "Content-Type": "application/json" }, body: JSON.stringify(body) });
  if (!response.ok) {
    document.getElementById("enqueue-error").textContent = (await response.json()).error;
    return;
  }
  location.reload();
}
async function retryJob(id) {
  await fetch("/api/dlq/" + encodeURIComponent(id) + "/retry", { method: "POST" });
  location.reload();
}
</script>
</body>
</html>
`))

type stateCount struct {
	Name  string
	Count int
}

type dashboardView struct {
	Status queue.Status
	States []stateCount
	Jobs   []store.Job
	DLQ    []store.DeadLetterEntry
}

func (s *Server) handleDashboard(
	writer http.ResponseWriter,
	request *http.Request,
) {
	ctx := request.Context()

	status, err := s.queue.Status(ctx)
	if err != nil {
		writeError(writer, request, err)
		return
	}

	jobs, err := s.queue.ListJobs(ctx, "", dashboardJobLimit)
	if err != nil {
		writeError(writer, request, err)
		return
	}

	dlq, err := s.queue.ListDLQ(ctx)
	if err != nil {
		writeError(writer, request, err)
		return
	}

	view := dashboardView{Status: status, Jobs: jobs, DLQ: dlq}
	for _, state := range store.JobStates {
		view.States = append(view.States, stateCount{Name: state, Count: status.Jobs[state]})
	}

	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(writer, view); err != nil {
		s.logger.Error("dashboard render failed", "err", err)
	}
}
