package webhost

const pageHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Call</title>
<style>
body { margin: 0; font-family: sans-serif; background: #111; color: #eee; }
.controls { display: flex; gap: 8px; padding: 12px; }
button { flex: 1; padding: 10px; border: 0; border-radius: 6px; cursor: pointer; }
#leave { background: #c0392b; color: #fff; }
#status { padding: 0 12px; font-size: 12px; opacity: .7; }
</style>
</head>
<body>
<div class="controls">
  <button id="mute">Mute</button>
  <button id="leave">Leave</button>
</div>
<div id="status">connecting</div>
<script>
const status = document.getElementById("status");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/pip/ws");
const control = (action) => ws.send(JSON.stringify({type: "control", action}));
document.getElementById("mute").onclick = () => control("toggle_mute");
document.getElementById("leave").onclick = () => control("leave");
ws.onopen = () => { status.textContent = "connected"; };
ws.onmessage = (e) => {
  const msg = JSON.parse(e.data);
  if (msg.type === "stylesheets") {
    for (const href of msg.hrefs || []) {
      const link = document.createElement("link");
      link.rel = "stylesheet";
      link.href = href;
      document.head.appendChild(link);
    }
  } else if (msg.type === "rejected") {
    status.textContent = "no pending request";
  } else if (msg.type === "close") {
    window.close();
  }
};
ws.onclose = () => { status.textContent = "closed"; };
</script>
</body>
</html>
`
