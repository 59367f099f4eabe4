package report

// htmlTemplate is the single-page run report.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Name}} - Load Run Report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg: #f8fafc;
            --card: #ffffff;
            --text: #1e293b;
            --muted: #64748b;
            --border: #e2e8f0;
            --accent: #3b82f6;
            --ok: #22c55e;
            --warn: #f59e0b;
            --err: #ef4444;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.6;
        }
        .container { max-width: 1400px; margin: 0 auto; padding: 2rem; }
        .card {
            background: var(--card);
            border-radius: 12px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
            box-shadow: 0 1px 3px rgba(0, 0, 0, 0.1);
        }
        .header { display: flex; justify-content: space-between; align-items: center; flex-wrap: wrap; gap: 1rem; }
        .header h1 { font-size: 1.75rem; }
        .meta { color: var(--muted); font-size: 0.875rem; display: flex; gap: 1.5rem; flex-wrap: wrap; }
        .status { padding: 0.5rem 1.25rem; border-radius: 999px; font-weight: 700; color: #fff; }
        .status.pass { background: var(--ok); }
        .status.fail { background: var(--err); }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; }
        .metric .label { color: var(--muted); font-size: 0.8rem; text-transform: uppercase; }
        .metric .value { font-size: 1.6rem; font-weight: 700; }
        .metric .unit { font-size: 0.9rem; color: var(--muted); margin-left: 0.25rem; }
        h2 { font-size: 1.15rem; margin-bottom: 1rem; }
        table { width: 100%; border-collapse: collapse; font-size: 0.875rem; }
        th, td { padding: 0.5rem 0.75rem; border-bottom: 1px solid var(--border); text-align: right; }
        th:first-child, td:first-child, td.text { text-align: left; }
        th { color: var(--muted); font-weight: 600; }
        td.fail { color: var(--err); font-weight: 600; }
        tr.total td { font-weight: 600; border-top: 2px solid var(--border); }
        .charts { display: grid; grid-template-columns: repeat(auto-fit, minmax(480px, 1fr)); gap: 1.5rem; }
        .chart-box { position: relative; height: 280px; }
        .threshold { display: flex; gap: 0.75rem; padding: 0.5rem 0; border-bottom: 1px solid var(--border); }
        .threshold .icon.pass { color: var(--ok); }
        .threshold .icon.fail { color: var(--err); }
        .error { color: var(--err); font-weight: 600; }
        footer { text-align: center; color: var(--muted); font-size: 0.8rem; padding: 1rem; }
    </style>
</head>
<body>
    <div class="container">
        <div class="card header">
            <div>
                <h1>{{.Name}}</h1>
                <div class="meta">
                    <span>Target {{.Host}}</span>
                    <span>{{.Executor}}</span>
                    <span>{{.StartTime.Format "2006-01-02 15:04:05"}}</span>
                    <span>{{formatDuration .Duration}}</span>
                    <span>Run {{.RunID}}</span>
                </div>
            </div>
            <div class="status {{if .Passed}}pass{{else}}fail{{end}}">
                {{if .Passed}}✓ PASSED{{else}}✗ FAILED{{end}}
            </div>
        </div>

        {{if .Error}}
        <div class="card error">Error: {{.Error}}</div>
        {{end}}

        {{with .Metrics}}
        <div class="card grid">
            <div class="metric"><div class="label">Total Requests</div><div class="value">{{formatNumber .TotalRequests}}</div></div>
            <div class="metric"><div class="label">Throughput</div><div class="value">{{printf "%.1f" .RPS}}<span class="unit">req/s</span></div></div>
            <div class="metric"><div class="label">Failure Rate</div><div class="value">{{printf "%.2f" (percent .ErrorRate)}}<span class="unit">%</span></div></div>
            <div class="metric"><div class="label">P95 Latency</div><div class="value">{{formatLatency .Latency.P95}}</div></div>
            <div class="metric"><div class="label">Iterations</div><div class="value">{{formatNumber .Iterations}}</div></div>
            <div class="metric"><div class="label">Data Received</div><div class="value">{{formatBytes .TotalBytes}}</div></div>
            <div class="metric"><div class="label">Users Spawned</div><div class="value">{{$.SpawnedUsers}}</div></div>
            <div class="metric"><div class="label">Users Stopped</div><div class="value">{{$.StoppedUsers}}</div></div>
        </div>

        <div class="card">
            <h2>Latency Distribution</h2>
            <table>
                <tr><th>Min</th><th>Mean</th><th>P50</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th><th>Std Dev</th></tr>
                <tr>
                    <td>{{formatLatency .Latency.Min}}</td>
                    <td>{{formatLatency .Latency.Mean}}</td>
                    <td>{{formatLatency .Latency.P50}}</td>
                    <td>{{formatLatency .Latency.P90}}</td>
                    <td>{{formatLatency .Latency.P95}}</td>
                    <td>{{formatLatency .Latency.P99}}</td>
                    <td>{{formatLatency .Latency.Max}}</td>
                    <td>{{formatLatency .Latency.StdDev}}</td>
                </tr>
            </table>
        </div>
        {{end}}

        {{if .TimeSeries}}
        <div class="charts">
            <div class="card"><h2>Requests per Second</h2><div class="chart-box"><canvas id="rpsChart"></canvas></div></div>
            <div class="card"><h2>Response Time</h2><div class="chart-box"><canvas id="latencyChart"></canvas></div></div>
            <div class="card"><h2>Active Users</h2><div class="chart-box"><canvas id="usersChart"></canvas></div></div>
            <div class="card"><h2>Failure Rate</h2><div class="chart-box"><canvas id="errorChart"></canvas></div></div>
        </div>
        {{end}}

        {{if .Requests}}
        <div class="card">
            <h2>Requests</h2>
            <table>
                <tr>
                    <th>Name</th><th># Requests</th><th># Successes</th><th># Fails</th><th>Avg</th><th>Min</th>
                    <th>Max</th><th>Median</th><th>P95</th><th>req/s</th><th>Bytes</th>
                </tr>
                {{range .Requests}}{{template "requestRow" .}}{{end}}
                {{with .Aggregated}}{{template "requestRow" .}}{{end}}
            </table>
        </div>
        {{end}}

        {{if .Failures}}
        <div class="card">
            <h2>Failures</h2>
            <table>
                <tr><th># Occurrences</th><th>Name</th><th>Message</th></tr>
                {{range .Failures}}
                <tr><td class="fail">{{formatNumber .Occurrences}}</td><td class="text">{{.Name}}</td><td class="text">{{.Message}}</td></tr>
                {{end}}
            </table>
        </div>
        {{end}}

        {{if .Thresholds}}
        <div class="card">
            <h2>Thresholds</h2>
            {{range .Thresholds}}
            <div class="threshold">
                <span class="icon {{if .Passed}}pass{{else}}fail{{end}}">{{if .Passed}}✓{{else}}✗{{end}}</span>
                <span>{{.Metric}} {{.Expression}}</span>
                <span>Actual: {{.Value}}</span>
                {{if .Message}}<span class="error">{{.Message}}</span>{{end}}
            </div>
            {{end}}
        </div>
        {{end}}

        {{if .PhaseHistory}}
        <div class="card">
            <h2>Phases</h2>
            <table>
                <tr><th>Phase</th><th>Started</th><th>Requests so far</th></tr>
                {{range .PhaseHistory}}
                <tr><td>{{.Phase}}</td><td>{{.Timestamp.Format "15:04:05.000"}}</td><td>{{formatNumber .Requests}}</td></tr>
                {{end}}
            </table>
        </div>
        {{end}}

        <footer>Generated by orderstorm • {{.EndTime.Format "2006-01-02 15:04:05 MST"}}</footer>
    </div>

    <script>
        const timeSeriesData = {{.TimeSeriesJSON}};
        if (timeSeriesData.length > 0) {
            const labels = timeSeriesData.map((d, i) => (i + 1) + 's');
            const line = (id, datasets, yTitle) => new Chart(document.getElementById(id).getContext('2d'), {
                type: 'line',
                data: { labels, datasets },
                options: {
                    responsive: true,
                    maintainAspectRatio: false,
                    interaction: { mode: 'index', intersect: false },
                    scales: { y: { beginAtZero: true, title: { display: true, text: yTitle } } },
                    elements: { point: { radius: 0 } }
                }
            });
            const series = (label, data, color) => ({ label, data, borderColor: color, backgroundColor: color + '33', tension: 0.3, fill: false });

            line('rpsChart', [series('req/s', timeSeriesData.map(d => d.intervalRPS), '#3b82f6')], 'req/s');
            line('latencyChart', [
                series('P50', timeSeriesData.map(d => d.latencyP50 / 1e6), '#22c55e'),
                series('P95', timeSeriesData.map(d => d.latencyP95 / 1e6), '#f59e0b'),
                series('P99', timeSeriesData.map(d => d.latencyP99 / 1e6), '#ef4444')
            ], 'ms');
            line('usersChart', [series('users', timeSeriesData.map(d => d.activeVUs), '#8b5cf6')], 'users');
            line('errorChart', [series('failure %', timeSeriesData.map(d => d.intervalErrorRate * 100), '#ef4444')], '%');
        }
    </script>
</body>
</html>
{{define "requestRow"}}
                <tr{{if eq .Name "Aggregated"}} class="total"{{end}}>
                    <td>{{.Name}}</td>
                    <td>{{formatNumber .Requests}}</td>
                    <td>{{formatNumber .Successes}}</td>
                    <td {{if .Failures}}class="fail"{{end}}>{{formatNumber .Failures}} ({{printf "%.1f" .FailurePct}}%)</td>
                    <td>{{formatLatency .Latency.Mean}}</td>
                    <td>{{formatLatency .Latency.Min}}</td>
                    <td>{{formatLatency .Latency.Max}}</td>
                    <td>{{formatLatency .Latency.P50}}</td>
                    <td>{{formatLatency .Latency.P95}}</td>
                    <td>{{printf "%.2f" .RPS}}</td>
                    <td>{{formatBytes .TotalBytes}}</td>
                </tr>
{{end}}
`
