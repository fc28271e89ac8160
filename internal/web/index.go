package web

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>rfscope</title>
<style>
body { background: #111; color: #ccc; font: 13px monospace; margin: 1em; }
canvas { width: 100%; height: 70vh; image-rendering: pixelated; background: #000; }
</style>
</head>
<body>
<canvas id="plot"></canvas>
<pre id="status">connecting...</pre>
<script>
const canvas = document.getElementById("plot");
const ctx = canvas.getContext("2d");
const status = document.getElementById("status");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.binaryType = "arraybuffer";
ws.onmessage = (ev) => {
  if (typeof ev.data === "string") {
    const s = JSON.parse(ev.data).stats;
    status.textContent = JSON.stringify(s, null, 2);
    return;
  }
  const view = new DataView(ev.data);
  const rows = view.getUint16(0), bins = view.getUint16(2);
  const cells = new Uint8Array(ev.data, 4);
  canvas.width = rows; canvas.height = bins;
  const img = ctx.createImageData(rows, bins);
  for (let t = 0; t < rows; t++) {
    for (let f = 0; f < bins; f++) {
      const v = cells[t * bins + f];
      const o = ((bins - 1 - f) * rows + t) * 4;
      img.data[o] = v; img.data[o + 1] = v; img.data[o + 2] = v; img.data[o + 3] = 255;
    }
  }
  ctx.putImageData(img, 0, 0);
};
ws.onclose = () => { status.textContent = "disconnected"; };
</script>
</body>
</html>
`
