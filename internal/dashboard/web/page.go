// Package web holds the embedded admin page served at the dashboard root.
package web

// PanelHTML is the single-page admin panel. It drives the /panel JSON endpoints
// and renders payment links as QR codes client side.
const PanelHTML = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1.0"/>
<title>Administración Dispenser Agua</title>
<script src="https://cdnjs.cloudflare.com/ajax/libs/qrious/4.0.2/qrious.min.js"></script>
<style>
  body { font-family: system-ui, sans-serif; background:#0d1117; color:#eee; padding:20px; }
  h1 { font-size:22px; }
  input, button { padding:6px 10px; margin:2px; }
  .card { border:1px solid #333; border-radius:8px; padding:10px; margin-bottom:15px; }
  .slot { background:#161b22; border-radius:6px; padding:10px; margin:8px 0; }
  table { width:100%; margin-top:10px; border-collapse:collapse; }
  th, td { border-bottom:1px solid #333; padding:4px 6px; text-align:left; font-size:14px; }
  #modal { position:fixed; inset:0; background:rgba(0,0,0,.65); display:none;
           align-items:center; justify-content:center; }
  #modal .inner { background:#fff; color:#000; padding:20px; border-radius:12px; text-align:center; }
  .err { color:#f66; }
</style>
</head>
<body>
<h1>Administración Dispenser Agua</h1>

<div id="loginBox">
  <input id="secret" type="password" placeholder="adminSecret"/>
  <button onclick="login()">Ingresar</button>
  <span id="loginError" class="err"></span>
</div>

<div id="panel" style="display:none">
  <button onclick="logout()">Salir</button>

  <h3>MercadoPago</h3>
  <div id="mpStatus"></div>
  <button onclick="vincular()">Vincular MP</button>
  <button onclick="desvincular()">Desvincular</button>
  <label><input id="liveMode" type="checkbox" onchange="setMode(this.checked)"/> Modo live</label>

  <h3>Dispensers</h3>
  <div id="dispensers"></div>
  <button onclick="agregarDispenser()">+ Agregar Dispenser</button>

  <h3>Pagos recientes</h3>
  <button onclick="refresh()">Refrescar</button>
  <table>
    <thead><tr><th>ID</th><th>mp_payment_id</th><th>Estado</th><th>Producto</th>
    <th>Slot</th><th>Monto</th><th>Acción</th></tr></thead>
    <tbody id="pagos"></tbody>
  </table>
</div>

<div id="modal"><div class="inner">
  <h2>Escaneá para pagar</h2>
  <canvas id="qr"></canvas><br/>
  <button onclick="document.getElementById('modal').style.display='none'">Cerrar</button>
</div></div>

<script>
let stateTimer = null;

async function call(method, path, body) {
  const r = await fetch(path, {
    method,
    headers: { "Content-Type": "application/json" },
    body: body === undefined ? undefined : JSON.stringify(body)
  });
  if (!r.ok) {
    const t = await r.json().catch(() => ({}));
    throw new Error(t.error || (method + " " + path + " → " + r.status));
  }
  return r.json();
}

async function login() {
  document.getElementById("loginError").innerText = "";
  try {
    const st = await call("POST", "/panel/login",
      { secret: document.getElementById("secret").value });
    document.getElementById("loginBox").style.display = "none";
    document.getElementById("panel").style.display = "block";
    render(st);
    stateTimer = setInterval(loadState, 5000);
  } catch (e) {
    document.getElementById("loginError").innerText = e.message;
  }
}

async function logout() {
  clearInterval(stateTimer);
  await call("POST", "/panel/logout", {}).catch(() => {});
  document.getElementById("panel").style.display = "none";
  document.getElementById("loginBox").style.display = "block";
}

async function loadState() {
  try { render(await call("GET", "/panel/state")); } catch (e) { console.error(e); }
}

async function refresh() {
  try { render(await call("POST", "/panel/refresh", {})); } catch (e) { alert(e.message); }
}

function render(st) {
  document.getElementById("mpStatus").innerText = st.oauth.vinculado
    ? "Cuenta vinculada: " + st.oauth.user_id : "Cuenta no vinculada";
  document.getElementById("liveMode").checked = st.config.mp_mode === "live";

  const box = document.getElementById("dispensers");
  box.innerHTML = "";
  (st.dispensers || []).forEach(d => {
    const rows = (st.products[d.id] || []).map(p => slotHTML(d.id, p)).join("");
    const div = document.createElement("div");
    div.className = "card";
    div.innerHTML = "<h4>" + d.nombre + " (" + d.device_id + ")</h4>" + rows;
    box.appendChild(div);
  });

  const tbody = document.getElementById("pagos");
  tbody.innerHTML = "";
  (st.pagos || []).forEach(p => {
    const tr = document.createElement("tr");
    const canResend = p.estado === "approved" && !p.dispensado;
    tr.innerHTML = "<td>" + p.id + "</td><td>" + (p.mp_payment_id || "") + "</td><td>" +
      p.estado + "</td><td>" + (p.producto || "") + "</td><td>" + p.slot_id + "</td><td>" +
      p.monto + "</td><td>" +
      (canResend ? '<button onclick="reenviar(' + p.id + ')">Reenviar</button>' : "") + "</td>";
    tbody.appendChild(tr);
  });
}

function slotHTML(did, p) {
  return '<div class="slot"><b>' + p.nombre + ' (slot ' + p.slot + ')</b><br/>' +
    'Nombre: <input value="' + p.nombre + '" onchange="edit(' + did + ',' + p.slot +
    ',\'nombre\',this.value)"/> ' +
    'Precio: <input type="number" value="' + p.precio + '" onchange="edit(' + did + ',' + p.slot +
    ',\'precio\',Number(this.value))"/> ' +
    'Habilitado: <input type="checkbox" ' + (p.habilitado ? "checked" : "") +
    ' onchange="toggle(' + did + ',' + p.slot + ',this.checked)"/> ' +
    '<button onclick="save(' + did + ',' + p.slot + ')">Guardar</button> ' +
    '<button onclick="qr(' + did + ',' + p.slot + ')">QR</button></div>';
}

async function edit(did, slot, field, value) {
  try { await call("POST", "/panel/edit", { dispenser_id: did, slot, field, value }); }
  catch (e) { alert(e.message); }
}

async function save(did, slot) {
  try {
    await call("POST", "/panel/save", { dispenser_id: did, slot });
    loadState();
  } catch (e) { alert(e.message); }
}

async function toggle(did, slot, checked) {
  try {
    await call("POST", "/panel/toggle", { dispenser_id: did, slot, habilitado: checked });
  } catch (e) { alert(e.message); loadState(); }
}

async function qr(did, slot) {
  try {
    const r = await call("POST", "/panel/qr", { dispenser_id: did, slot });
    new QRious({ element: document.getElementById("qr"), value: r.link, size: 260 });
    document.getElementById("modal").style.display = "flex";
  } catch (e) { alert(e.message); }
}

async function reenviar(id) {
  try {
    const r = await call("POST", "/panel/pagos/" + id + "/reenviar");
    alert(r.message || "Reenviado");
  } catch (e) { alert(e.message); }
}

async function agregarDispenser() {
  const nombre = prompt("Nombre del dispenser") || "";
  try { await call("POST", "/panel/dispensers", { nombre }); refresh(); }
  catch (e) { alert(e.message); }
}

async function vincular() {
  try { window.open((await call("POST", "/panel/oauth/link", {})).url, "_blank"); }
  catch (e) { alert(e.message); }
}

async function desvincular() {
  if (!confirm("¿Desvincular la cuenta de MercadoPago?")) return;
  try { await call("POST", "/panel/oauth/unlink", { confirm: true }); loadState(); }
  catch (e) { alert(e.message); }
}

async function setMode(live) {
  try { await call("POST", "/panel/mode", { live }); } catch (e) { alert(e.message); }
}
</script>
</body>
</html>`
