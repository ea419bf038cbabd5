package webui

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Drowsiness Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; font-family: system-ui, sans-serif; background: #14141a; color: #e8e8ee; }
        .app { max-width: 1080px; margin: 0 auto; padding: 16px; }
        .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 12px; }
        .title { font-size: 22px; font-weight: 600; }
        .badge { padding: 4px 10px; border-radius: 12px; font-size: 13px; background: #2a2a34; }
        .badge.alert { background: #b2222a; animation: flash 0.8s infinite alternate; }
        @keyframes flash { from { opacity: 1; } to { opacity: 0.5; } }
        .grid { display: grid; grid-template-columns: 2fr 1fr; gap: 16px; }
        .panel { background: #1d1d26; border-radius: 8px; padding: 14px; }
        .panel h2 { margin: 0 0 8px; font-size: 16px; }
        #stream { width: 100%; height: auto; display: block; background: #000; border-radius: 4px; }
        .stat-grid { display: grid; grid-template-columns: 1fr 1fr; gap: 10px; }
        .stat-label { display: block; font-size: 12px; color: #9a9aad; }
        .stat-value { font-size: 20px; font-weight: 600; }
        button { background: #30303e; color: inherit; border: 0; border-radius: 6px; padding: 8px 12px; cursor: pointer; }
        button:hover { background: #3c3c4c; }
        input { width: 70px; background: #2a2a34; color: inherit; border: 1px solid #3c3c4c; border-radius: 4px; padding: 4px; }
        .events { max-height: 220px; overflow-y: auto; font-size: 13px; }
        .events div { padding: 4px 0; border-bottom: 1px solid #2a2a34; }
        .events .alert-row { color: #ff7a80; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <div class="title">Drowsiness Monitor</div>
            <span class="badge" id="status-badge">Waiting for data...</span>
        </div>

        <div class="grid">
            <div class="panel">
                <h2>Live Feed</h2>
                <img id="stream" src="/stream" alt="Annotated camera stream">
                <p><button id="snapshot-btn">Save snapshot</button></p>
            </div>

            <div>
                <div class="panel">
                    <h2>Status</h2>
                    <div class="stat-grid">
                        <div><span class="stat-label">Mean EAR</span><span class="stat-value" id="ear">--</span></div>
                        <div><span class="stat-label">Low frames</span><span class="stat-value" id="low-frames">--</span></div>
                        <div><span class="stat-label">FPS</span><span class="stat-value" id="fps">--</span></div>
                        <div><span class="stat-label">Faces</span><span class="stat-value" id="faces">--</span></div>
                        <div><span class="stat-label">Alerts</span><span class="stat-value" id="alerts">--</span></div>
                        <div><span class="stat-label">Dropped</span><span class="stat-value" id="dropped">--</span></div>
                    </div>
                </div>

                <div class="panel" style="margin-top: 16px;">
                    <h2>Tuning</h2>
                    <p>EAR threshold <input id="cfg-ear" type="number" step="0.01" min="0.05" max="0.95"></p>
                    <p>Frame check <input id="cfg-frames" type="number" step="1" min="1"></p>
                    <p><button id="cfg-apply">Apply</button></p>
                </div>
            </div>
        </div>

        <div class="panel" style="margin-top: 16px;">
            <h2>Alert events</h2>
            <div class="events" id="events"></div>
        </div>
    </div>

    <script>
        const badge = document.getElementById('status-badge');

        const status = new EventSource('/api/status/stream');
        status.onmessage = (e) => {
            const data = JSON.parse(e.data);
            const d = data.drowsiness;
            document.getElementById('ear').textContent = d.last_mean_ear.toFixed(3);
            document.getElementById('low-frames').textContent = d.low_frames;
            document.getElementById('faces').textContent = d.faces;
            document.getElementById('alerts').textContent = d.alerts_total;
            document.getElementById('fps').textContent = data.monitor.current_fps.toFixed(1);
            document.getElementById('dropped').textContent = data.monitor.frames_dropped;
            if (d.alert_active) {
                badge.textContent = 'DROWSINESS ALERT';
                badge.classList.add('alert');
            } else {
                badge.textContent = 'Monitoring';
                badge.classList.remove('alert');
            }
        };

        const alerts = new EventSource('/api/alerts/stream');
        alerts.onmessage = (e) => {
            const ev = JSON.parse(e.data);
            const row = document.createElement('div');
            const ts = new Date(ev.timestamp * 1000).toLocaleTimeString();
            if (ev.alert) {
                row.className = 'alert-row';
                row.textContent = ts + '  ALERT  frame ' + ev.frame_number + '  EAR ' + ev.mean_ear.toFixed(3);
            } else {
                row.textContent = ts + '  cleared  frame ' + ev.frame_number;
            }
            const box = document.getElementById('events');
            box.prepend(row);
            while (box.childElementCount > 50) box.removeChild(box.lastChild);
        };

        fetch('/api/config').then(r => r.json()).then(cfg => {
            document.getElementById('cfg-ear').value = cfg.ear_threshold;
            document.getElementById('cfg-frames').value = cfg.frame_check_threshold;
        });

        document.getElementById('cfg-apply').onclick = () => {
            fetch('/api/config', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({
                    ear_threshold: parseFloat(document.getElementById('cfg-ear').value),
                    frame_check_threshold: parseInt(document.getElementById('cfg-frames').value, 10),
                }),
            });
        };

        document.getElementById('snapshot-btn').onclick = () => {
            fetch('/api/snapshot', {method: 'POST'});
        };
    </script>
</body>
</html>
`
