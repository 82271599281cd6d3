package httpapi

import "net/http"

// demoPage is the built-in front end served at GET /. It drives POST
// /generate and renders progress pushed over /ws.
const demoPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Lumina Text-to-Image</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2em auto; }
fieldset { border: 1px solid #ccc; margin-bottom: 1em; }
label { display: block; margin: 0.5em 0 0.2em; }
textarea, select, input { width: 100%; box-sizing: border-box; }
.row { display: flex; gap: 1em; }
.row > div { flex: 1; }
#out img { max-width: 100%; }
#progress { height: 6px; background: #eee; margin: 1em 0; }
#progress div { height: 100%; width: 0; background: #4a90d9; }
</style>
</head>
<body>
<h1>Lumina Text-to-Image</h1>
<fieldset>
<label for="caption">Caption</label>
<textarea id="caption" rows="3">A humanoid eagle soldier of the First World War.</textarea>
<div class="row">
<div>
<label for="resolution">Resolution</label>
<select id="resolution">
<option>1024x1024</option>
<option>512x2048</option>
<option>2048x512</option>
<option>(Extrapolation) 1664x1664</option>
<option>(Extrapolation) 1024x2048</option>
<option>(Extrapolation) 2048x1024</option>
</select>
</div>
<div>
<label for="solver">Solver</label>
<select id="solver">
<option>euler</option>
<option>midpoint</option>
<option>rk4</option>
<option selected>dopri5</option>
</select>
</div>
</div>
<div class="row">
<div>
<label for="steps">Sampling steps: <span id="stepsv">30</span></label>
<input type="range" id="steps" min="1" max="1000" value="30">
</div>
<div>
<label for="cfg">CFG scale: <span id="cfgv">4</span></label>
<input type="range" id="cfg" min="1" max="20" step="0.5" value="4">
</div>
</div>
<div class="row">
<div>
<label for="shift">Time shift: <span id="shiftv">4</span></label>
<input type="range" id="shift" min="1" max="20" value="4">
</div>
<div>
<label for="seed">Seed (0 = random)</label>
<input type="number" id="seed" min="0" max="100000" value="0">
</div>
</div>
<div class="row">
<div><label><input type="checkbox" id="ntk" style="width:auto"> NTK scaling</label></div>
<div><label><input type="checkbox" id="prop" style="width:auto"> Proportional attention</label></div>
</div>
<button id="go" style="margin-top:1em">Generate</button>
</fieldset>
<div id="progress"><div></div></div>
<div id="out"></div>
<script>
for (const id of ["steps","cfg","shift"]) {
  const el = document.getElementById(id);
  el.oninput = () => document.getElementById(id+"v").textContent = el.value;
}
const bar = document.querySelector("#progress div");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (m) => {
  const ev = JSON.parse(m.data);
  if (ev.event === "progress" && ev.fields && ev.fields.total > 0) {
    bar.style.width = (100 * ev.fields.step / ev.fields.total) + "%";
  }
};
document.getElementById("go").onclick = async () => {
  bar.style.width = "0";
  const body = {
    caption: document.getElementById("caption").value,
    resolution: document.getElementById("resolution").value,
    num_sampling_steps: parseInt(document.getElementById("steps").value),
    cfg_scale: parseFloat(document.getElementById("cfg").value),
    solver: document.getElementById("solver").value,
    time_shift: parseFloat(document.getElementById("shift").value),
    seed: parseInt(document.getElementById("seed").value),
    ntk_scaling: document.getElementById("ntk").checked,
    proportional_attn: document.getElementById("prop").checked
  };
  const resp = await fetch("/generate", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify(body)
  });
  const out = document.getElementById("out");
  if (!resp.ok) {
    const err = await resp.json();
    out.textContent = "error: " + err.error;
    return;
  }
  const blob = await resp.blob();
  const img = document.createElement("img");
  img.src = URL.createObjectURL(blob);
  out.replaceChildren(img);
  bar.style.width = "100%";
};
</script>
</body>
</html>
`

func servePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(demoPage))
}
