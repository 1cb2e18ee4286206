package gui

// PlaceholderCSS styles the host while no sandbox is shown
const PlaceholderCSS = `font-size:30px;
font-family:courier;
text-align:center;
vertical-align:middle;
background-color:rgba(28, 232, 181, 0.5);`

// PlaceholderHTML is shown until a project's GUI replaces it
const PlaceholderHTML = `<h2>BELA P5 GUI</h2>
<p>In order to use the GUI functionality in Bela</p>
<p>you need to use the GUI library</p>
<p>and include a sketch.js file (p5 sketch) in your project.</p>
<p>(Your project will need to be running for the GUI to be accessible).</p>`
